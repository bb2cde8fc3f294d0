package tele

import (
	"sync"

	"github.com/MCMike0399/water-monitor-aws/log2"
)

// MockTransport captures sent payloads, for tests.
type MockTransport struct {
	mu        sync.Mutex
	States    [][]byte
	Telemetry [][]byte
	Fail      bool // all sends report loss
	closed    bool
}

func NewMockTransport() *MockTransport { return &MockTransport{} }

func (m *MockTransport) Init(log *log2.Log, c Config) error { return nil }

func (m *MockTransport) SendState(payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return false
	}
	m.States = append(m.States, append([]byte(nil), payload...))
	return true
}

func (m *MockTransport) SendTelemetry(payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return false
	}
	m.Telemetry = append(m.Telemetry, append([]byte(nil), payload...))
	return true
}

func (m *MockTransport) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
