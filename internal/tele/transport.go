package tele

import (
	"github.com/MCMike0399/water-monitor-aws/log2"
)

// Transport contract:
// - Init fails only with invalid config, ignores network errors
// - Send* report delivery as bool, upstream decides whether loss matters
// - the agent must be able to start without network available
type Transporter interface {
	Init(log *log2.Log, c Config) error
	SendState(payload []byte) bool
	SendTelemetry(payload []byte) bool
	Close()
}
