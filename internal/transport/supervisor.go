// Package transport connects a caption engine to a server over a websocket,
// feeding every text frame to the engine and reporting connection status.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jkang1643/Exbabel-sub010/internal/caption"
	"github.com/jkang1643/Exbabel-sub010/internal/observability"
	"github.com/jkang1643/Exbabel-sub010/internal/resilience"
)

var (
	ErrAlreadyConnected = errors.New("transport: already connected")
	ErrEmptyURL         = errors.New("transport: url is required")
)

const closeGracePeriod = time.Second

// Sink receives decoded traffic. *caption.Engine implements it.
type Sink interface {
	IngestJSON(frame []byte) error
	SetStatus(status caption.Status, err error)
}

// Options configures a Supervisor
type Options struct {
	// Reconnect keeps redialing after failures until Disconnect
	Reconnect bool
	// Backoff defaults to resilience.DefaultReconnectConfig
	Backoff *resilience.ReconnectConfig
	// Dialer defaults to websocket.DefaultDialer
	Dialer *websocket.Dialer
	Header http.Header
	// Logger defaults to the global logger
	Logger *zerolog.Logger
}

// Supervisor owns one websocket connection at a time. Caption state lives in
// the sink and survives reconnects.
type Supervisor struct {
	sink   Sink
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   *websocket.Conn
	done   chan struct{}
	status caption.Status
}

// New creates a disconnected supervisor
func New(sink Sink, opts Options) *Supervisor {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Backoff == nil {
		opts.Backoff = resilience.DefaultReconnectConfig()
	}
	logger := observability.GetLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Supervisor{
		sink:   sink,
		opts:   opts,
		logger: logger.With().Str("component", "transport").Logger(),
		status: caption.StatusDisconnected,
	}
}

// Connect starts supervising a connection to url in the background. Status
// transitions are reported to the sink; use Done to wait for the supervisor
// to stop.
func (s *Supervisor) Connect(ctx context.Context, url string) error {
	if url == "" {
		return ErrEmptyURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrAlreadyConnected
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, url, s.done)
	return nil
}

// Disconnect closes the connection, stops reconnecting and waits for the
// supervisor to report its terminal status. It is safe to call repeatedly.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()
	cancel, conn, done := s.cancel, s.conn, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		err = conn.Close()
	}
	<-done

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Done is closed when the supervisor stops: after Disconnect, after ctx is
// cancelled, or when the connection ends with reconnect disabled
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Status returns the last reported status
func (s *Supervisor) Status() caption.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Healthy is a readiness check reporting whether a connection is up
func (s *Supervisor) Healthy(ctx context.Context) (bool, error) {
	if status := s.Status(); status != caption.StatusConnected {
		return false, fmt.Errorf("transport is %s", status)
	}
	return true, nil
}

func (s *Supervisor) run(ctx context.Context, url string, done chan struct{}) {
	defer close(done)

	for {
		conn, metrics, err := s.dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				s.setStatus(caption.StatusClosed, nil)
			}
			return
		}

		// Unblocks ReadMessage when the context ends mid-read.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = s.readLoop(ctx, conn, metrics)
		stop()
		metrics.RecordClosed()
		s.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			s.setStatus(caption.StatusClosed, nil)
			return
		}
		if err != nil {
			s.setStatus(caption.StatusError, err)
		} else {
			s.setStatus(caption.StatusClosed, nil)
		}
		if !s.opts.Reconnect {
			return
		}

		// Back off before redialing a connection that dropped.
		if !s.sleep(ctx, s.opts.Backoff.Delay(0)) {
			s.setStatus(caption.StatusClosed, nil)
			return
		}
	}
}

// dial connects, retrying per the backoff policy when reconnect is enabled
func (s *Supervisor) dial(ctx context.Context, url string) (*websocket.Conn, *observability.ConnectionMetrics, error) {
	policy := *s.opts.Backoff
	if !s.opts.Reconnect {
		policy.MaxAttempts = 1
	}

	var (
		conn    *websocket.Conn
		metrics *observability.ConnectionMetrics
	)
	err := resilience.Reconnect(ctx, func(attempt int) error {
		connectionID := observability.NewCorrelationID()
		logger := s.logger.With().Str("connection_id", connectionID).Logger()
		m := observability.NewConnectionMetrics(connectionID)

		s.setStatus(caption.StatusConnecting, nil)
		c, resp, err := s.opts.Dialer.DialContext(ctx, url, s.opts.Header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			m.RecordConnectResult(false)
			logger.Warn().Err(err).Int("attempt", attempt+1).Str("url", url).Msg("Failed to connect")
			if ctx.Err() == nil {
				s.setStatus(caption.StatusError, fmt.Errorf("dial %s: %w", url, err))
			}
			return err
		}

		m.RecordConnectResult(true)
		logger.Info().Str("url", url).Msg("Connected")
		conn, metrics = c, m
		s.setConn(c)
		s.setStatus(caption.StatusConnected, nil)
		return nil
	}, &policy)

	if err != nil {
		return nil, nil, err
	}
	return conn, metrics, nil
}

// readLoop feeds frames to the sink until the connection ends. A clean close
// from the server returns nil.
func (s *Supervisor) readLoop(ctx context.Context, conn *websocket.Conn, metrics *observability.ConnectionMetrics) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if msgType != websocket.TextMessage {
			metrics.RecordFrame("binary", len(data))
			continue
		}
		if err := s.sink.IngestJSON(data); err != nil {
			// The transport stays open on bad frames.
			metrics.RecordFrame("malformed", len(data))
			s.logger.Debug().Err(err).Int("bytes", len(data)).Msg("Dropped malformed frame")
			continue
		}
		metrics.RecordFrame("ok", len(data))
	}
}

func (s *Supervisor) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Supervisor) setStatus(status caption.Status, err error) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.sink.SetStatus(status, err)
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
