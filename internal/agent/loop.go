package agent

import (
	"time"

	"github.com/MCMike0399/water-monitor-aws/internal/tele"
	"github.com/juju/errors"
	"github.com/temoto/atomic_clock"
)

// The loop yields for pollInterval between iterations, far below the
// publish interval so tick timing is unaffected.
const pollInterval = 10 * time.Millisecond

// scheduleState is the loop's only mutable timing state, explicit struct,
// never package globals.
type scheduleState struct {
	lastPublish atomic_clock.Clock
}

// Run is the process's only control loop: link health gate, idle-timeout
// forced reconnect, time-gated publish. Returns only on Stop() or an
// unrecoverable link error.
func (g *Global) Run() error {
	interval := g.Config.PublishInterval()
	reconnectInterval := g.Config.ReconnectInterval()
	keepAlive := g.Config.Server.KeepAlive
	sched := new(scheduleState)

	defer g.Session.ForceClose()
	for g.Alive.IsRunning() {
		if !g.Link.IsLinked() {
			g.Tele.State(tele.StateLinkDown)
			g.Log.Infof("link down, reconnecting")
			if err := g.Link.Reconnect(); err != nil {
				// missing hardware, nothing to supervise us at this layer
				return errors.Annotate(err, "agent link")
			}
			continue
		}

		// idle-timeout check runs between ticks only, never mid-send
		if keepAlive && g.Session.IdleExceeded(reconnectInterval) {
			g.Log.Debugf("session idle-timeout forced close")
			g.Session.ForceClose()
		}

		if atomic_clock.Since(&sched.lastPublish) >= interval {
			if err := g.Publisher.Tick(); err != nil {
				g.Error(err)
				g.Tele.State(tele.StateProblem)
			} else {
				g.Tele.State(tele.StateOnline)
			}
			// advance regardless of outcome so failures cannot cause tick storms
			sched.lastPublish.SetNow()
		}

		select {
		case <-g.Alive.StopChan():
		case <-time.After(pollInterval):
		}
	}
	return nil
}
