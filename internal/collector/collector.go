// Package collector is the development-side receiver for agent publishes:
// HTTP publish endpoint, latest-reading cache, WebSocket fanout for
// dashboards, optional mock data generator.
package collector

import (
	"bufio"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/gorilla/websocket"
	"github.com/temoto/alive/v2"
)

const (
	PublishPath = "/water-monitor/publish"
	// dashboards are refreshed on this cadence, same as the mock generator
	PushInterval = 3 * time.Second
)

type Data struct {
	T  float64 `json:"T"`
	PH float64 `json:"PH"`
	C  float64 `json:"C"`
}

type Server struct {
	log      *log2.Log
	alive    *alive.Alive
	upgrader websocket.Upgrader

	mu      sync.Mutex
	latest  Data
	useMock bool

	reqSeq uint64
}

func New(log *log2.Log, a *alive.Alive, useMock bool) *Server {
	return &Server{
		log:   log,
		alive: a,
		// defaults shown until the first publish lands
		latest:   Data{T: 25.0, PH: 7.0, C: 300.0},
		useMock:  useMock,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PublishPath, s.handlePublish)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/water-monitor", s.handleLatest)
	mux.HandleFunc("/water-monitor/ws", s.handleWebsocket)
	return s.logRequests(mux)
}

func (s *Server) Latest() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Server) setLatest(d Data) {
	s.mu.Lock()
	s.latest = d
	s.mu.Unlock()
}

func (s *Server) mockMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useMock
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"status": "error", "message": "POST only"})
		return
	}
	var raw map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.log.Infof("collector invalid json err=%v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid json"})
		return
	}
	t, okT := raw["T"]
	ph, okPH := raw["PH"]
	c, okC := raw["C"]
	if !okT || !okPH || !okC {
		writeJSON(w, http.StatusOK, map[string]string{"status": "info", "message": "incomplete data ignored"})
		return
	}
	if s.mockMode() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "info", "message": "ignored, mock mode active"})
		return
	}
	s.setLatest(Data{T: t, PH: ph, C: c})
	s.log.Debugf("collector latest T=%.2f PH=%.2f C=%.2f", t, ph, c)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "received"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Latest())
}

// handleWebsocket pushes the latest reading immediately, then on every
// PushInterval until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Infof("collector ws upgrade err=%v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(PushInterval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(s.Latest()); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-s.alive.StopChan():
			return
		case <-ticker.C:
		}
	}
}

// RunMock generates random readings in realistic ranges until stop.
func (s *Server) RunMock(interval time.Duration) {
	defer s.alive.Done()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	s.log.Infof("collector mock data every %s", interval)
	for {
		select {
		case <-s.alive.StopChan():
			return
		case <-time.After(interval):
		}
		if !s.mockMode() {
			continue
		}
		d := Data{
			T:  round2(5 + rnd.Float64()*795),
			PH: round2(3 + rnd.Float64()*7),
			C:  round2(100 + rnd.Float64()*1100),
		}
		s.setLatest(d)
		s.log.Debugf("collector mock T=%.2f PH=%.2f C=%.2f", d.T, d.PH, d.C)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := atomic.AddUint64(&s.reqSeq, 1)
		begin := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Infof("[%d] %s %s -> %d (%s)", id, r.Method, r.URL.Path, sw.code, time.Since(begin))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// websocket upgrade needs the underlying connection
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
