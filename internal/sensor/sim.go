package sensor

import (
	"math/rand"
	"sync"
)

// SimADC is a development stand-in for real hardware: random walk around
// mid-scale, clamped to the 12-bit range.
type SimADC struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	last map[uint8]int
}

func NewSimADC(seed int64) *SimADC {
	return &SimADC{
		rnd:  rand.New(rand.NewSource(seed)),
		last: make(map[uint8]int),
	}
}

func (s *SimADC) Read(pin uint8) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.last[pin]
	if !ok {
		v = RawMax / 2
	}
	v += s.rnd.Intn(33) - 16
	if v < 0 {
		v = 0
	}
	if v > RawMax {
		v = RawMax
	}
	s.last[pin] = v
	return uint16(v), nil
}
