// Package tele is the optional status side channel: agent state transitions
// and error telemetry over MQTT. Sensor readings do not go through here,
// they take the HTTP publish path.
package tele

import (
	"encoding/json"
	"time"

	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/juju/errors"
)

type State byte

const (
	StateInvalid State = iota
	StateBoot
	StateOnline
	StateLinkDown
	StateProblem
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "boot"
	case StateOnline:
		return "online"
	case StateLinkDown:
		return "link-down"
	case StateProblem:
		return "problem"
	}
	return "invalid"
}

type Config struct { //nolint:maligned
	Enabled        bool   `hcl:"enable"`
	DeviceId       string `hcl:"device_id"`
	LogDebug       bool   `hcl:"log_debug"`
	MqttBroker     string `hcl:"mqtt_broker"`
	MqttPassword   string `hcl:"mqtt_password"` // secret
	KeepaliveSec   int    `hcl:"keepalive_sec"`
	PingTimeoutSec int    `hcl:"ping_timeout_sec"`
}

// Teler contract:
// - Init fails only on invalid config, network issues are ignored
// - State/Error never block the publish loop beyond the transport's own send
// - state messages may be lost, that is acceptable for a status channel
type Teler interface {
	Init(log *log2.Log, c Config) error
	State(s State)
	Error(e error)
	Close()
}

type errorMessage struct {
	Device  string `json:"device"`
	Time    int64  `json:"time"`
	Message string `json:"error"`
}

type tele struct {
	config       Config
	log          *log2.Log
	transport    Transporter
	currentState State
}

func New() Teler { return &tele{} }

// test code sets transport; production path defaults to MQTT
func NewWithTransporter(trans Transporter) Teler { return &tele{transport: trans} }

func (self *tele) Init(log *log2.Log, c Config) error {
	self.config = c
	self.log = log
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.config.Enabled {
		return nil
	}
	if self.transport == nil {
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(log, c); err != nil {
		return errors.Annotate(err, "tele transport")
	}
	self.State(StateBoot)
	return nil
}

func (self *tele) Close() {
	if self.transport != nil {
		self.transport.Close()
	}
}

// State sends only transitions, repeated same-state calls are no-ops.
func (self *tele) State(s State) {
	if !self.config.Enabled {
		return
	}
	if self.currentState == s {
		return
	}
	self.currentState = s
	if !self.transport.SendState([]byte{byte(s)}) {
		self.log.Debugf("tele state=%s lost", s.String())
	}
}

func (self *tele) Error(e error) {
	if !self.config.Enabled || e == nil {
		return
	}
	msg := errorMessage{
		Device:  self.config.DeviceId,
		Time:    time.Now().UnixNano(),
		Message: e.Error(),
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		self.log.Errorf("tele error encode msg=%#v err=%v", msg, err)
		return
	}
	if !self.transport.SendTelemetry(payload) {
		self.log.Debugf("tele error=%s lost", e.Error())
	}
}
