package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/MCMike0399/water-monitor-aws/internal/agent"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

func main() {
	flagConfig := flag.String("config", "water-agent.hcl", "")
	flag.Parse()

	l := log2.NewStderr(log2.LInfo)
	if sdnotify("STATUS=starting") {
		// under systemd, journal adds timestamps
		l.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		l.SetFlags(log2.LInteractiveFlags)
	} else {
		l.SetFlags(log2.LStdFlags)
	}
	l.Info("hello")

	g := &agent.Global{Log: l}
	cfg := agent.MustReadConfig(l, agent.NewOsFullReader(), *flagConfig)
	g.MustInit(cfg)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		l.Infof("signal=%v stopping", sig)
		g.Stop()
	}()

	g.Alive.Add(1)
	go func() {
		defer g.Alive.Done()
		if err := g.Run(); err != nil {
			// unrecoverable, no supervisor at this layer
			l.Fatal(errors.ErrorStack(err))
		}
	}()
	sdnotify(daemon.SdNotifyReady)

	g.Alive.Wait()
	g.Tele.Close()
	l.Info("goodbye")
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
