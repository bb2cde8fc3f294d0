package agent

import (
	"net"
	"strconv"
	"time"

	"github.com/MCMike0399/water-monitor-aws/helpers"
	"github.com/MCMike0399/water-monitor-aws/internal/link"
	"github.com/MCMike0399/water-monitor-aws/internal/publish"
	"github.com/MCMike0399/water-monitor-aws/internal/sensor"
	"github.com/MCMike0399/water-monitor-aws/internal/session"
	"github.com/MCMike0399/water-monitor-aws/internal/tele"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

// Global wires the agent together. Tests preset the collaborator fields
// (Link, Tele, ADC) before Init; production leaves them nil and gets the
// real implementations.
type Global struct {
	Alive     *alive.Alive
	Config    *Config
	Log       *log2.Log
	Tele      tele.Teler
	Link      link.Link
	ADC       sensor.ADC
	Sensors   *sensor.Array
	Session   *session.Session
	Publisher *publish.Publisher
}

// If Init fails, consider Global is in broken state.
func (g *Global) Init(cfg *Config) error {
	g.Config = cfg
	if g.Alive == nil {
		g.Alive = alive.NewAlive()
	}

	// tele is the remote error reporting mechanism, init before anything else.
	// It gets a clone without the error hook so its own logging cannot loop
	// back into itself.
	if g.Tele == nil {
		g.Tele = tele.New()
	}
	if err := g.Tele.Init(g.Log.Clone(log2.LInfo), cfg.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}
	g.Log.SetErrorFunc(g.Tele.Error)

	if g.Link == nil {
		iface := cfg.Link.Iface
		if iface == "" {
			iface = DefaultLinkIface
		}
		g.Link = link.NewNetdev(g.Log, iface,
			helpers.IntMillisecondDefault(cfg.Link.RetryMs, link.DefaultRetry))
	}

	if err := g.initSensors(cfg); err != nil {
		return err
	}

	if cfg.Server.Host == "" {
		return errors.NotValidf("config server.host empty")
	}
	port := cfg.Server.Port
	if port == 0 {
		port = DefaultServerPort
	}
	path := cfg.Server.Path
	if path == "" {
		path = DefaultServerPath
	}
	if g.Session == nil {
		g.Session = session.New(g.Log, net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port)))
	}
	g.Session.SetDialTimeout(helpers.IntMillisecondDefault(cfg.Server.DialTimeoutMs, session.DefaultDialTimeout))
	g.Publisher = publish.New(g.Log, g.Sensors, g.Session, publish.Options{
		Host:         cfg.Server.Host,
		Path:         path,
		KeepAlive:    cfg.Server.KeepAlive,
		DrainTimeout: helpers.IntMillisecondDefault(cfg.Server.SendTimeoutMs, publish.DefaultDrainTimeout),
		TraceEvery:   cfg.Publish.TraceEvery,
	})

	g.Log.Debugf("agent init complete server=%s:%d keepalive=%t interval=%s",
		cfg.Server.Host, port, cfg.Server.KeepAlive, g.Config.PublishInterval())
	return nil
}

func (g *Global) MustInit(cfg *Config) {
	if err := g.Init(cfg); err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) initSensors(cfg *Config) error {
	if g.ADC == nil {
		switch {
		case cfg.Sensor.Mock:
			g.ADC = sensor.NewSimADC(time.Now().UnixNano())
		case cfg.Sensor.Spi != "":
			adc, err := sensor.NewMCP3208(cfg.Sensor.Spi)
			if err != nil {
				return errors.Annotate(err, "sensor adc")
			}
			g.ADC = adc
		default:
			return errors.NotValidf("config sensor: set spi or mock")
		}
	}
	g.Sensors = sensor.NewArray(g.Log, g.ADC)
	g.Sensors.SetTiming(cfg.Sensor.Samples,
		helpers.IntMillisecondDefault(cfg.Sensor.SettleMs, sensor.DefaultSettle))
	for ch := sensor.Turbidity; ch < sensor.ChannelCount; ch++ {
		cal, err := g.Config.Calibration(ch)
		if err != nil {
			return err
		}
		g.Sensors.SetCalibration(ch, cal)
	}
	return nil
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		// error hook mirrors onto the tele channel
		g.Log.Errorf(errors.ErrorStack(err))
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}
