package sensor

// Public API to easy create ADC stubs to test your code.

import (
	"fmt"
	"sync"
)

// MockADC returns scripted values per pin, then sticks to the last one.
type MockADC struct {
	mu    sync.Mutex
	seq   map[uint8][]uint16
	last  map[uint8]uint16
	Err   error // returned by every Read when set
	Reads int
}

func NewMockADC() *MockADC {
	return &MockADC{
		seq:  make(map[uint8][]uint16),
		last: make(map[uint8]uint16),
	}
}

func (m *MockADC) Script(pin uint8, values ...uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[pin] = append(m.seq[pin], values...)
}

func (m *MockADC) Read(pin uint8) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.Err != nil {
		return 0, m.Err
	}
	if q := m.seq[pin]; len(q) > 0 {
		v := q[0]
		m.seq[pin] = q[1:]
		m.last[pin] = v
		return v, nil
	}
	if v, ok := m.last[pin]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("mock adc no script pin=%d", pin)
}
