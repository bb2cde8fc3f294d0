package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MCMike0399/water-monitor-aws/internal/collector"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/mattn/go-isatty"
	"github.com/temoto/alive/v2"
)

func main() {
	flagListen := flag.String("listen", ":8000", "HTTP listen address")
	flagMock := flag.Bool("mock", false, "generate mock data instead of accepting publishes")
	flag.Parse()

	l := log2.NewStderr(log2.LInfo)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		l.SetFlags(log2.LInteractiveFlags)
	}

	a := alive.NewAlive()
	s := collector.New(l, a, *flagMock)
	if *flagMock {
		a.Add(1)
		go s.RunMock(collector.PushInterval)
	}

	srv := &http.Server{
		Addr:         *flagListen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket pushes hold the connection
	}
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		l.Infof("signal=%v stopping", sig)
		a.Stop()
		_ = srv.Close()
	}()

	l.Infof("collector listening on %s mock=%t", *flagListen, *flagMock)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		l.Fatal(err)
	}
	a.Wait()
	l.Info("goodbye")
}
