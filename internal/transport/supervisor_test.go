package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jkang1643/Exbabel-sub010/internal/caption"
	"github.com/jkang1643/Exbabel-sub010/internal/resilience"
)

type recordingSink struct {
	mu       sync.Mutex
	frames   []string
	statuses []caption.Status
	errs     []error
}

func (s *recordingSink) IngestJSON(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.HasPrefix(string(frame), "{") {
		return caption.ErrMalformedEvent
	}
	s.frames = append(s.frames, string(frame))
	return nil
}

func (s *recordingSink) SetStatus(status caption.Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.errs = append(s.errs, err)
}

func (s *recordingSink) snapshot() ([]string, []caption.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...), append([]caption.Status(nil), s.statuses...)
}

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fastBackoff() *resilience.ReconnectConfig {
	return &resilience.ReconnectConfig{
		Backoff:    5 * time.Millisecond,
		Multiplier: 2.0,
		MaxBackoff: 20 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

func waitDone(t *testing.T, s *Supervisor) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for supervisor to stop")
	}
}

// sendAndClose writes the frames then closes the connection normally
func sendAndClose(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))

		// Wait for the client to answer the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// holdOpen keeps each connection open until the client goes away
func holdOpen(connections *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		atomic.AddInt32(connections, 1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func TestSupervisor_DeliversTextFrames(t *testing.T) {
	srv := httptest.NewServer(sendAndClose(`{"type":"session_ready"}`, "not json", `{"type":"translation"}`))
	defer srv.Close()

	sink := &recordingSink{}
	s := New(sink, Options{Reconnect: false})
	if err := s.Connect(context.Background(), wsURL(srv)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitDone(t, s)

	frames, statuses := sink.snapshot()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d: %v", len(frames), frames)
	}
	if frames[0] != `{"type":"session_ready"}` {
		t.Errorf("Expected session_ready frame first, got '%s'", frames[0])
	}

	expected := []caption.Status{caption.StatusConnecting, caption.StatusConnected, caption.StatusClosed}
	if len(statuses) != len(expected) {
		t.Fatalf("Expected statuses %v, got %v", expected, statuses)
	}
	for i := range expected {
		if statuses[i] != expected[i] {
			t.Errorf("Expected status %d to be %s, got %s", i, expected[i], statuses[i])
		}
	}
	if s.Status() != caption.StatusClosed {
		t.Errorf("Expected closed, got %s", s.Status())
	}
}

func TestSupervisor_Disconnect(t *testing.T) {
	var connections int32
	srv := httptest.NewServer(holdOpen(&connections))
	defer srv.Close()

	sink := &recordingSink{}
	s := New(sink, Options{Reconnect: true, Backoff: fastBackoff()})
	if err := s.Connect(context.Background(), wsURL(srv)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, func() bool { return s.Status() == caption.StatusConnected })

	if healthy, err := s.Healthy(context.Background()); !healthy || err != nil {
		t.Errorf("Expected healthy while connected, got %v (%v)", healthy, err)
	}

	if err := s.Disconnect(); err != nil {
		t.Errorf("Expected clean disconnect, got %v", err)
	}
	waitDone(t, s)

	if s.Status() != caption.StatusClosed {
		t.Errorf("Expected closed after disconnect, got %s", s.Status())
	}
	if healthy, _ := s.Healthy(context.Background()); healthy {
		t.Error("Expected unhealthy after disconnect")
	}
	if err := s.Disconnect(); err != nil {
		t.Errorf("Expected second disconnect to be a no-op, got %v", err)
	}
	if n := atomic.LoadInt32(&connections); n != 1 {
		t.Errorf("Expected 1 connection, got %d", n)
	}
}

func TestSupervisor_ConnectTwice(t *testing.T) {
	var connections int32
	srv := httptest.NewServer(holdOpen(&connections))
	defer srv.Close()

	s := New(&recordingSink{}, Options{})
	if err := s.Connect(context.Background(), wsURL(srv)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	if err := s.Connect(context.Background(), wsURL(srv)); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("Expected ErrAlreadyConnected, got %v", err)
	}
}

func TestSupervisor_EmptyURL(t *testing.T) {
	s := New(&recordingSink{}, Options{})
	if err := s.Connect(context.Background(), ""); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("Expected ErrEmptyURL, got %v", err)
	}
}

func TestSupervisor_DialFailureWithoutReconnect(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	sink := &recordingSink{}
	s := New(sink, Options{Reconnect: false, Backoff: fastBackoff()})
	if err := s.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitDone(t, s)

	_, statuses := sink.snapshot()
	if len(statuses) != 2 || statuses[0] != caption.StatusConnecting || statuses[1] != caption.StatusError {
		t.Errorf("Expected [connecting error], got %v", statuses)
	}
	sink.mu.Lock()
	lastErr := sink.errs[len(sink.errs)-1]
	sink.mu.Unlock()
	if lastErr == nil {
		t.Error("Expected the dial error to be reported")
	}
}

func TestSupervisor_ReconnectsAfterServerClose(t *testing.T) {
	var connections int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&connections, 1) == 1 {
			sendAndClose(`{"type":"session_joined"}`)(w, r)
			return
		}
		var ignored int32
		holdOpen(&ignored)(w, r)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	s := New(sink, Options{Reconnect: true, Backoff: fastBackoff()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Connect(ctx, wsURL(srv)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, func() bool {
		return atomic.LoadInt32(&connections) >= 2 && s.Status() == caption.StatusConnected
	})

	cancel()
	waitDone(t, s)

	frames, statuses := sink.snapshot()
	if len(frames) != 1 {
		t.Errorf("Expected 1 frame, got %d", len(frames))
	}
	connected := 0
	for _, st := range statuses {
		if st == caption.StatusConnected {
			connected++
		}
	}
	if connected != 2 {
		t.Errorf("Expected 2 connected transitions, got %d in %v", connected, statuses)
	}
	if statuses[len(statuses)-1] != caption.StatusClosed {
		t.Errorf("Expected final status closed, got %s", statuses[len(statuses)-1])
	}
}
