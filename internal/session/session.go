// Package session owns the collector connection lifecycle: dial, keep-alive
// hold, bounded response drain, forced teardown. At most one connection is
// open at any time.
package session

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/MCMike0399/water-monitor-aws/helpers"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/temoto/atomic_clock"
)

const DefaultDialTimeout = 5 * time.Second

type State uint32

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// ConnectError is a transport-level dial failure. The tick is skipped and
// the session stays closed.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return "session connect: " + e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// IOError is a write/read failure mid-session. The session is force-closed
// so the next tick dials fresh.
type IOError struct{ Err error }

func (e *IOError) Error() string { return "session io: " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

type Dialer func(addr string, timeout time.Duration) (net.Conn, error)

type Session struct {
	log         *log2.Log
	dial        Dialer
	addr        string
	dialTimeout time.Duration
	conn        net.Conn
	br          *bufio.Reader
	state       State
	lastConnect atomic_clock.Clock
}

func New(log *log2.Log, addr string) *Session {
	return &Session{
		log:  log,
		addr: addr,
		dial: func(addr string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		},
		dialTimeout: DefaultDialTimeout,
	}
}

// SetDialer replaces the transport, for tests.
func (s *Session) SetDialer(d Dialer) { s.dial = d }

func (s *Session) SetDialTimeout(d time.Duration) {
	if d > 0 {
		s.dialTimeout = d
	}
}

func (s *Session) State() State { return s.state }
func (s *Session) Open() bool   { return s.state == StateOpen }

// IdleExceeded reports whether the connection has been held longer than d
// since the last successful dial. Only meaningful while open.
func (s *Session) IdleExceeded(d time.Duration) bool {
	return s.state == StateOpen && atomic_clock.Since(&s.lastConnect) >= d
}

// EnsureOpen dials once if closed. On failure the state stays closed and the
// caller must skip the publish.
func (s *Session) EnsureOpen() error {
	if s.state == StateOpen {
		return nil
	}
	conn, err := s.dial(s.addr, s.dialTimeout)
	if err != nil {
		s.log.Errorf("session connect addr=%s err=%v", s.addr, err)
		return &ConnectError{Err: err}
	}
	s.conn = conn
	s.br = bufio.NewReader(conn)
	s.state = StateOpen
	s.lastConnect.SetNow()
	s.log.Debugf("session open addr=%s", s.addr)
	return nil
}

// SendAndDrain writes the full request, then reads and discards the response.
// The wall-clock deadline is an upper bound against a slow peer; a complete
// response returns promptly. A truncated or absent response is not an error;
// any transport failure closes the session.
func (s *Session) SendAndDrain(request []byte, deadline time.Duration) error {
	if s.state != StateOpen {
		return &IOError{Err: fmt.Errorf("send on closed session")}
	}
	if err := helpers.WriteAll(s.conn, request); err != nil {
		s.ForceClose()
		return &IOError{Err: err}
	}
	if err := s.drain(time.Now().Add(deadline)); err != nil {
		s.ForceClose()
		return &IOError{Err: err}
	}
	return nil
}

// ForceClose is unconditional teardown, no-op when already closed.
func (s *Session) ForceClose() {
	if s.state == StateClosed {
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.br = nil
	s.state = StateClosed
	s.log.Debugf("session closed addr=%s", s.addr)
}

type drainState uint8

const (
	readingHeaders drainState = iota
	headersDone
	drainingBody
)

// drainGrace bounds body consumption after the header blank line. The
// response arrived, only stragglers remain; waiting out the full deadline
// here would halve the publish cadence on keep-alive connections.
const drainGrace = 5 * time.Millisecond

// drain scans status line and headers until the blank separator, then
// discards the body. The deadline bounds all states combined against a
// slow or stalled peer; hitting it is success with truncated read, matching
// best-effort response consumption. A prompt complete response returns as
// soon as buffered bytes plus the grace window are consumed.
func (s *Session) drain(deadline time.Time) error {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	st := readingHeaders
	var buf [512]byte
	for {
		switch st {
		case readingHeaders:
			line, err := s.br.ReadString('\n')
			if err != nil {
				return drainResult(err)
			}
			if line == "\r\n" || line == "\n" {
				st = headersDone
			}
		case headersDone:
			if grace := time.Now().Add(drainGrace); grace.Before(deadline) {
				if err := s.conn.SetReadDeadline(grace); err != nil {
					return err
				}
			}
			st = drainingBody
		case drainingBody:
			if _, err := s.br.Read(buf[:]); err != nil {
				return drainResult(err)
			}
		}
	}
}

// Deadline expiry and peer close both terminate the drain normally.
func drainResult(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}
