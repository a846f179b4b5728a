package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// closeTimeout bounds how long Close waits for the server to acknowledge
const closeTimeout = time.Second

// ErrStreamClosed is returned when sending on a closed stream
var ErrStreamClosed = errors.New("stream is closed")

// StreamHandler receives what the server pushes on a stream.
// HandleFrame is called once per message in arrival order; HandleClose is
// called exactly once when the connection ends, with nil for a normal or
// locally initiated closure. Both run on the stream's reader goroutine.
type StreamHandler interface {
	HandleFrame(data []byte)
	HandleClose(err error)
}

// Dialer opens streaming channels to the backend WebSocket endpoint
type Dialer struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
	tracer trace.Tracer
}

// NewDialer creates a dialer for a ws:// or wss:// URL
func NewDialer(rawURL string, logger *slog.Logger) (*Dialer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("stream URL must be ws:// or wss://, got %q", rawURL)
	}

	return &Dialer{
		url:    rawURL,
		dialer: websocket.DefaultDialer,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// URL returns the endpoint this dialer connects to
func (d *Dialer) URL() string {
	return d.url
}

// Dial connects and starts delivering frames to h
func (d *Dialer) Dial(ctx context.Context, h StreamHandler) (*Stream, error) {
	ctx, span := d.tracer.Start(ctx, "stream.dial", trace.WithAttributes(attribute.String("ws.url", d.url)))
	defer span.End()

	conn, _, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("failed to open stream", "url", d.url, "error", err)
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	s := &Stream{
		conn:   conn,
		logger: d.logger,
		done:   make(chan struct{}),
	}
	go s.readLoop(h)

	d.logger.Info("opened stream", "url", d.url)
	return s, nil
}

// Stream is one open WebSocket connection
type Stream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Send writes text as a single text frame
func (s *Stream) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close sends a normal closure and releases the connection. It is safe to
// call more than once and from any goroutine except the handler callbacks.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout),
	)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(closeTimeout):
	}
	if cerr := s.conn.Close(); cerr != nil {
		s.logger.Debug("stream connection already released", "error", cerr)
	}

	s.logger.Info("closed stream")
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// Done is closed once the reader goroutine has exited
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) readLoop(h StreamHandler) {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			local := s.closed
			s.closed = true
			s.mu.Unlock()
			s.conn.Close()

			if local || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.HandleClose(nil)
			} else {
				s.logger.Warn("stream ended unexpectedly", "error", err)
				h.HandleClose(err)
			}
			return
		}
		h.HandleFrame(data)
	}
}
