package session

import (
	"fmt"
	"io/ioutil"
	"net"
	"testing"
	"time"

	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer hands out the client end of a net.Pipe and runs peer on the
// server end.
func pipeDialer(t testing.TB, dials *int, peer func(net.Conn)) Dialer {
	return func(addr string, timeout time.Duration) (net.Conn, error) {
		*dials++
		client, server := net.Pipe()
		go peer(server)
		return client, nil
	}
}

func echoOK(keepOpen bool) func(net.Conn) {
	return func(c net.Conn) {
		buf := make([]byte, 4096)
		_, _ = c.Read(buf)
		_, _ = c.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
		if !keepOpen {
			_ = c.Close()
		}
	}
}

func newTest(t testing.TB) *Session {
	return New(log2.NewTest(t, log2.LError), "collector.test:8000")
}

func TestEnsureOpenReusesConnection(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	dials := 0
	s.SetDialer(pipeDialer(t, &dials, func(c net.Conn) { _, _ = ioutil.ReadAll(c) }))

	require.Equal(t, StateClosed, s.State())
	require.NoError(t, s.EnsureOpen())
	assert.Equal(t, StateOpen, s.State())
	require.NoError(t, s.EnsureOpen())
	assert.Equal(t, 1, dials, "open session must be reused, not redialed")
}

func TestEnsureOpenFailureStaysClosed(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	s.SetDialer(func(addr string, timeout time.Duration) (net.Conn, error) {
		return nil, fmt.Errorf("refused")
	})
	err := s.EnsureOpen()
	require.Error(t, err)
	assert.IsType(t, &ConnectError{}, err)
	assert.Equal(t, StateClosed, s.State())
}

func TestSendAndDrainPeerCloses(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	dials := 0
	s.SetDialer(pipeDialer(t, &dials, echoOK(false)))
	require.NoError(t, s.EnsureOpen())
	err := s.SendAndDrain([]byte("POST / HTTP/1.1\r\n\r\n"), time.Second)
	assert.NoError(t, err, "peer close terminates drain normally")
	assert.Equal(t, StateOpen, s.State())
}

func TestSendAndDrainDeadlineIsSuccess(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	dials := 0
	// peer stalls mid-headers and holds the connection: drain must stop at
	// the deadline
	s.SetDialer(pipeDialer(t, &dials, func(c net.Conn) {
		buf := make([]byte, 4096)
		_, _ = c.Read(buf)
		_, _ = c.Write([]byte("HTTP/1.1 200 OK\r\n"))
	}))
	require.NoError(t, s.EnsureOpen())
	begin := time.Now()
	err := s.SendAndDrain([]byte("POST / HTTP/1.1\r\n\r\n"), 50*time.Millisecond)
	assert.NoError(t, err, "deadline expiry is success with truncated read")
	assert.WithinDuration(t, begin.Add(50*time.Millisecond), time.Now(), 300*time.Millisecond)
	assert.Equal(t, StateOpen, s.State())
}

func TestSendAndDrainPromptResponse(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	dials := 0
	// peer answers at once and holds the keep-alive connection open: drain
	// must return well before the deadline, not wait it out
	s.SetDialer(pipeDialer(t, &dials, echoOK(true)))
	require.NoError(t, s.EnsureOpen())
	begin := time.Now()
	err := s.SendAndDrain([]byte("POST / HTTP/1.1\r\n\r\n"), 300*time.Millisecond)
	elapsed := time.Since(begin)
	assert.NoError(t, err)
	assert.Less(t, int64(elapsed), int64(150*time.Millisecond),
		"complete response must not cost the full drain deadline")
	assert.Equal(t, StateOpen, s.State())
}

func TestSendAndDrainSilentPeer(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	dials := 0
	// absence of a well-formed response is not fatal
	s.SetDialer(pipeDialer(t, &dials, func(c net.Conn) {
		buf := make([]byte, 4096)
		_, _ = c.Read(buf)
	}))
	require.NoError(t, s.EnsureOpen())
	err := s.SendAndDrain([]byte("POST / HTTP/1.1\r\n\r\n"), 50*time.Millisecond)
	assert.NoError(t, err)
}

func TestSendFailureClosesSession(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	dials := 0
	s.SetDialer(pipeDialer(t, &dials, func(c net.Conn) { _ = c.Close() }))
	require.NoError(t, s.EnsureOpen())
	time.Sleep(10 * time.Millisecond) // let peer close land
	err := s.SendAndDrain([]byte("POST / HTTP/1.1\r\n\r\n"), time.Second)
	require.Error(t, err)
	assert.IsType(t, &IOError{}, err)
	assert.Equal(t, StateClosed, s.State(), "transport failure must downgrade state before any retry")
}

func TestSendOnClosedSession(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	err := s.SendAndDrain([]byte("x"), time.Second)
	require.Error(t, err)
	assert.IsType(t, &IOError{}, err)
}

func TestForceCloseIdempotent(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	s.ForceClose() // no-op from closed
	assert.Equal(t, StateClosed, s.State())

	dials := 0
	s.SetDialer(pipeDialer(t, &dials, func(c net.Conn) { _, _ = ioutil.ReadAll(c) }))
	require.NoError(t, s.EnsureOpen())
	s.ForceClose()
	assert.Equal(t, StateClosed, s.State())
	s.ForceClose()
	assert.Equal(t, StateClosed, s.State())
}

func TestIdleExceeded(t *testing.T) {
	t.Parallel()
	s := newTest(t)
	assert.False(t, s.IdleExceeded(0), "closed session is never idle-exceeded")

	dials := 0
	s.SetDialer(pipeDialer(t, &dials, func(c net.Conn) { _, _ = ioutil.ReadAll(c) }))
	require.NoError(t, s.EnsureOpen())
	assert.False(t, s.IdleExceeded(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, s.IdleExceeded(time.Millisecond))
}
