package tele

import (
	"fmt"
	"time"

	"github.com/MCMike0399/water-monitor-aws/helpers"
	"github.com/MCMike0399/water-monitor-aws/log2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

const sendTimeout = 10 * time.Second

type transportMqtt struct {
	log  *log2.Log
	m    mqtt.Client
	mopt *mqtt.ClientOptions

	topicPrefix    string
	topicState     string
	topicTelemetry string
}

func (self *transportMqtt) Init(log *log2.Log, c Config) error {
	self.log = log
	if c.MqttBroker == "" {
		return errors.NotValidf("tele mqtt_broker empty")
	}
	clientId := c.DeviceId
	if clientId == "" {
		clientId = "water-monitor"
	}
	credFun := func() (string, string) {
		return clientId, c.MqttPassword
	}

	self.topicPrefix = clientId
	self.topicState = fmt.Sprintf("%s/w/1s", self.topicPrefix)
	self.topicTelemetry = fmt.Sprintf("%s/w/1t", self.topicPrefix)
	keepAlive := helpers.IntSecondDefault(c.KeepaliveSec, 60*time.Second)
	pingTimeout := helpers.IntSecondDefault(c.PingTimeoutSec, 30*time.Second)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(c.MqttBroker).
		SetBinaryWill(self.topicState, []byte{byte(StateInvalid)}, 1, true).
		SetCleanSession(false).
		SetClientID(clientId).
		SetCredentialsProvider(credFun).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetOrderMatters(false).
		SetAutoReconnect(true)
	self.m = mqtt.NewClient(self.mopt)

	// network errors are not Init errors, paho reconnects in background
	t := self.m.Connect()
	if t.WaitTimeout(sendTimeout) && t.Error() != nil {
		self.log.Errorf("tele mqtt connect broker=%s err=%v", c.MqttBroker, t.Error())
	}
	return nil
}

func (self *transportMqtt) SendState(payload []byte) bool {
	return self.publish(self.topicState, payload, true)
}

func (self *transportMqtt) SendTelemetry(payload []byte) bool {
	return self.publish(self.topicTelemetry, payload, false)
}

func (self *transportMqtt) Close() {
	if self.m != nil {
		self.m.Disconnect(uint(sendTimeout / time.Millisecond))
	}
}

func (self *transportMqtt) publish(topic string, payload []byte, retained bool) bool {
	t := self.m.Publish(topic, 1, retained, payload)
	if !t.WaitTimeout(sendTimeout) {
		self.log.Debugf("tele mqtt publish topic=%s timeout", topic)
		return false
	}
	if err := t.Error(); err != nil {
		self.log.Errorf("tele mqtt publish topic=%s err=%v", topic, err)
		return false
	}
	return true
}
