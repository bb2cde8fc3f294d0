// Package publish drives one telemetry tick: sample, convert, encode,
// send over the session, drain the response.
package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MCMike0399/water-monitor-aws/internal/sensor"
	"github.com/MCMike0399/water-monitor-aws/internal/session"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/juju/errors"
)

const (
	DefaultDrainTimeout = 1000 * time.Millisecond
	// verbose value traces only every Nth tick, diagnostic channel is slow
	DefaultTraceEvery = 5
)

type Options struct {
	Host         string // Host header value
	Path         string
	KeepAlive    bool
	DrainTimeout time.Duration
	TraceEvery   int
}

// Payload is the collector wire format. Field order is structural; values
// are rounded to 2 decimals before they get here.
type Payload struct {
	T  float64 `json:"T"`
	PH float64 `json:"PH"`
	C  float64 `json:"C"`
}

type Publisher struct {
	log     *log2.Log
	sensors *sensor.Array
	session *session.Session
	opt     Options
	tickN   uint32
}

func New(log *log2.Log, sensors *sensor.Array, sess *session.Session, opt Options) *Publisher {
	if opt.DrainTimeout == 0 {
		opt.DrainTimeout = DefaultDrainTimeout
	}
	if opt.TraceEvery == 0 {
		opt.TraceEvery = DefaultTraceEvery
	}
	return &Publisher{log: log, sensors: sensors, session: sess, opt: opt}
}

// Tick runs one publish attempt. Any failure skips to the next tick, no
// same-tick retry, no partial state left behind.
func (p *Publisher) Tick() error {
	batch, err := p.sensors.ReadBatch()
	if err != nil {
		return errors.Annotate(err, "publish batch")
	}
	pay := Payload{
		T:  batch[sensor.Turbidity].Value,
		PH: batch[sensor.PH].Value,
		C:  batch[sensor.Conductivity].Value,
	}
	p.tickN++
	if p.tickN%uint32(p.opt.TraceEvery) == 0 {
		p.log.Infof("data T=%.2f PH=%.2f C=%.2f", pay.T, pay.PH, pay.C)
	}

	body, err := json.Marshal(&pay)
	if err != nil {
		return errors.Annotate(err, "publish encode")
	}
	if err := p.session.EnsureOpen(); err != nil {
		return errors.Annotate(err, "publish")
	}
	if err := p.session.SendAndDrain(p.buildRequest(body), p.opt.DrainTimeout); err != nil {
		return errors.Annotate(err, "publish")
	}
	if !p.opt.KeepAlive {
		p.session.ForceClose()
	}
	return nil
}

func (p *Publisher) buildRequest(body []byte) []byte {
	connection := "close"
	if p.opt.KeepAlive {
		connection = "keep-alive"
	}
	buf := bytes.NewBuffer(make([]byte, 0, 160+len(body)))
	fmt.Fprintf(buf, "POST %s HTTP/1.1\r\n", p.opt.Path)
	fmt.Fprintf(buf, "Host: %s\r\n", p.opt.Host)
	fmt.Fprintf(buf, "Connection: %s\r\n", connection)
	buf.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(buf, "Content-Length: %d\r\n", len(body))
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}
