// Package conversation turns user input into backend requests and keeps
// the ordered message history of the active thread. It owns the choice
// between one-shot HTTP requests and the streaming channel.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"AgentChat/internal/events"
	"AgentChat/internal/render"
	"AgentChat/internal/session"
	"AgentChat/internal/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Asker performs one-shot requests against the backend
type Asker interface {
	Ask(ctx context.Context, query, lang string) (session.Content, error)
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Stream is an open streaming channel
type Stream interface {
	Send(ctx context.Context, text string) error
	Close() error
}

// StreamDialer opens a streaming channel delivering to h
type StreamDialer func(ctx context.Context, h transport.StreamHandler) (Stream, error)

// WebSocketDialer adapts a transport.Dialer
func WebSocketDialer(d *transport.Dialer) StreamDialer {
	return func(ctx context.Context, h transport.StreamHandler) (Stream, error) {
		s, err := d.Dial(ctx, h)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Recorder persists appended messages
type Recorder interface {
	AppendMessage(ctx context.Context, threadID string, msg session.Message) error
}

// Options configures a Manager
type Options struct {
	Asker    Asker
	Dial     StreamDialer
	Bus      *events.Bus
	Recorder Recorder
	Lang     string
	Logger   *slog.Logger
	Meter    metric.Meter
	// OnExchange runs after a one-shot question got an answer
	OnExchange func(threadID, query string)
}

// Manager is the conversation session manager for one active thread at a time
type Manager struct {
	asker      Asker
	dial       StreamDialer
	bus        *events.Bus
	recorder   Recorder
	lang       string
	logger     *slog.Logger
	onExchange func(threadID, query string)
	appended   metric.Int64Counter
	frames     metric.Int64Counter

	mu      sync.Mutex
	store   *session.Store
	state   State
	loading bool
	stream  Stream
	// activeToken identifies the stream handler whose callbacks are live; 0 means none
	activeToken uint64
	streamSeq   uint64
	// gen changes on every thread switch so superseded requests leave state alone
	gen uint64
	// after queues side effects in the order their changes were made;
	// draining is set while one goroutine runs them
	after    []func()
	draining bool
}

// NewManager creates a manager for store
func NewManager(store *session.Store, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if opts.Asker == nil {
		return nil, fmt.Errorf("asker cannot be nil")
	}
	if opts.Dial == nil {
		return nil, fmt.Errorf("stream dialer cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Lang == "" {
		opts.Lang = "en"
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("AgentChat/internal/conversation")
	}

	appended, err := opts.Meter.Int64Counter("agentchat.messages.appended",
		metric.WithDescription("Messages appended to conversation stores"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	frames, err := opts.Meter.Int64Counter("agentchat.stream.frames",
		metric.WithDescription("Frames received over the streaming channel"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Manager{
		asker:      opts.Asker,
		dial:       opts.Dial,
		bus:        opts.Bus,
		recorder:   opts.Recorder,
		lang:       opts.Lang,
		logger:     opts.Logger,
		onExchange: opts.OnExchange,
		appended:   appended,
		frames:     frames,
		store:      store,
	}, nil
}

// State returns the current transport state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loading reports whether a request or stream reply is outstanding
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Store returns the active thread's message store
func (m *Manager) Store() *session.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store
}

// Submit sends user input. With an open stream the text goes over the
// stream and replies arrive asynchronously; otherwise it is asked as a
// one-shot request. Transport failures are turned into messages in the
// store. Editing an earlier question is just another Submit.
func (m *Manager) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	m.mu.Lock()
	store, gen := m.store, m.gen
	m.appendLocked(store, session.NewMessage(session.RoleUser, session.TextContent(text)))

	if m.state == StateStreamingOpen && m.stream != nil {
		stream := m.stream
		m.setLoadingLocked(true)
		m.unlock()
		return m.sendOnStream(ctx, stream, store, gen, text)
	}

	m.setStateLocked(StateOneShotPending)
	m.setLoadingLocked(true)
	m.unlock()

	content, err := m.asker.Ask(ctx, text, m.lang)

	m.mu.Lock()
	current := gen == m.gen
	if err != nil {
		m.logger.Warn("one-shot request failed", "thread_id", store.ThreadID(), "error", err)
		m.appendLocked(store, session.NewMessage(session.RoleAssistant, session.AnswerContent(askErrorText(err))))
		if current {
			m.setStateLocked(StateIdle)
			m.setLoadingLocked(false)
		}
		m.unlock()
		return nil
	}

	m.appendLocked(store, session.NewMessage(session.RoleAssistant, content))
	if m.onExchange != nil {
		threadID := store.ThreadID()
		m.after = append(m.after, func() { m.onExchange(threadID, text) })
	}
	if !current {
		m.logger.Info("late response appended to superseded thread", "thread_id", store.ThreadID())
		m.unlock()
		return nil
	}

	if content.Type == session.TypeInteractiveSessionStart {
		m.unlock()
		m.openStream(ctx, store, gen)
		return nil
	}

	m.setStateLocked(StateIdle)
	m.setLoadingLocked(false)
	m.unlock()
	return nil
}

// Pick submits the n-th (1-based) choice offered by a rendered view: an
// answer follow-up or a selection card
func (m *Manager) Pick(ctx context.Context, v render.View, n int) error {
	choices := render.Choices(v)
	if n < 1 || n > len(choices) {
		return fmt.Errorf("choice %d out of range (1-%d)", n, len(choices))
	}
	return m.Submit(ctx, choices[n-1])
}

// Upload sends a document to the backend. It does not touch the transport
// state, only the shared loading flag; failures become system messages.
func (m *Manager) Upload(ctx context.Context, filename string, r io.Reader) error {
	m.mu.Lock()
	store := m.store
	m.appendLocked(store, session.NewMessage(session.RoleSystem, session.TextContent(fmt.Sprintf("Uploading %s...", filename))))
	m.setLoadingLocked(true)
	m.unlock()

	msg, err := m.asker.Upload(ctx, filename, r)

	m.mu.Lock()
	if err != nil {
		m.logger.Warn("upload failed", "file", filename, "error", err)
		m.appendLocked(store, session.NewMessage(session.RoleSystem, session.TextContent(fmt.Sprintf("Error uploading %s.", filename))))
	} else {
		m.appendLocked(store, session.NewMessage(session.RoleSystem, session.TextContent(msg)))
	}
	m.setLoadingLocked(false)
	m.unlock()
	return nil
}

// SwitchThread makes store the active conversation. An open stream is
// closed, the outgoing thread gets a session-ended notice, and unsent
// stream input is dropped.
func (m *Manager) SwitchThread(store *session.Store) {
	m.mu.Lock()
	stream := m.teardownLocked(true)
	m.store = store
	m.unlock()

	m.closeStream(stream)
	m.logger.Info("switched thread", "thread_id", store.ThreadID())
}

// Close tears down any stream without announcing it
func (m *Manager) Close() {
	m.mu.Lock()
	stream := m.teardownLocked(false)
	m.unlock()
	m.closeStream(stream)
}

func (m *Manager) teardownLocked(announce bool) Stream {
	stream := m.stream
	if announce && m.state == StateStreamingOpen {
		m.setStateLocked(StateStreamingClosed)
		m.appendLocked(m.store, session.NewMessage(session.RoleSystem, session.TextContent(SessionEndedText)))
	}
	m.stream = nil
	m.activeToken = 0
	m.gen++
	m.setStateLocked(StateIdle)
	m.setLoadingLocked(false)
	return stream
}

func (m *Manager) closeStream(s Stream) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		m.logger.Warn("failed to close stream", "error", err)
	}
}

func (m *Manager) sendOnStream(ctx context.Context, stream Stream, store *session.Store, gen uint64, text string) error {
	err := stream.Send(ctx, text)
	if err == nil {
		return nil
	}

	m.logger.Warn("stream send failed", "thread_id", store.ThreadID(), "error", err)
	m.mu.Lock()
	m.appendLocked(store, session.NewMessage(session.RoleAssistant, session.TextContent(LostConnectionText)))
	if gen == m.gen {
		m.setLoadingLocked(false)
	}
	m.unlock()
	return fmt.Errorf("failed to send over stream: %w", err)
}

func (m *Manager) openStream(ctx context.Context, store *session.Store, gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.unlock()
		return
	}
	m.streamSeq++
	h := &streamHandler{m: m, store: store, token: m.streamSeq}
	m.activeToken = h.token
	m.unlock()

	stream, err := m.dial(ctx, h)

	m.mu.Lock()
	if err != nil {
		m.logger.Warn("failed to open interactive session", "thread_id", store.ThreadID(), "error", err)
		if m.activeToken == h.token {
			m.activeToken = 0
		}
		m.appendLocked(store, session.NewMessage(session.RoleAssistant, session.TextContent(LostConnectionText)))
		if gen == m.gen {
			m.setStateLocked(StateIdle)
			m.setLoadingLocked(false)
		}
		m.unlock()
		return
	}

	if m.activeToken != h.token || gen != m.gen {
		// switched away or already ended while dialing
		m.unlock()
		m.closeStream(stream)
		return
	}

	m.stream = stream
	m.setStateLocked(StateStreamingOpen)
	m.setLoadingLocked(false)
	m.unlock()
	m.logger.Info("interactive session started", "thread_id", store.ThreadID())
}

// streamHandler routes one stream's callbacks back into the manager
type streamHandler struct {
	m     *Manager
	store *session.Store
	token uint64
}

func (h *streamHandler) HandleFrame(data []byte) {
	f := transport.ParseFrame(data)
	m := h.m

	m.mu.Lock()
	if m.activeToken != h.token {
		m.unlock()
		return
	}
	msg := session.NewMessage(session.RoleAssistant, session.TextContent(f.Text))
	msg.Sender = f.Sender
	m.appendLocked(h.store, msg)
	m.setLoadingLocked(false)
	m.unlock()

	m.frames.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", f.Type)))
}

func (h *streamHandler) HandleClose(err error) {
	m := h.m

	m.mu.Lock()
	if m.activeToken != h.token {
		m.unlock()
		return
	}
	m.activeToken = 0
	m.stream = nil
	if err != nil {
		m.appendLocked(h.store, session.NewMessage(session.RoleAssistant, session.TextContent(LostConnectionText)))
	}
	m.setStateLocked(StateStreamingClosed)
	m.appendLocked(h.store, session.NewMessage(session.RoleSystem, session.TextContent(SessionEndedText)))
	m.setStateLocked(StateIdle)
	m.setLoadingLocked(false)
	m.unlock()

	m.logger.Info("interactive session ended", "thread_id", h.store.ThreadID(), "error", err)
}

func (m *Manager) appendLocked(store *session.Store, msg session.Message) {
	store.Append(msg)
	m.appended.Add(context.Background(), 1, metric.WithAttributes(attribute.String("role", string(msg.Role))))

	threadID := store.ThreadID()
	m.after = append(m.after, func() {
		if m.recorder != nil {
			if err := m.recorder.AppendMessage(context.Background(), threadID, msg); err != nil {
				m.logger.Error("failed to record message", "thread_id", threadID, "error", err)
			}
		}
		m.bus.Publish(events.MessageAppended{ThreadID: threadID, Message: msg})
	})
}

func (m *Manager) setStateLocked(to State) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	m.after = append(m.after, func() {
		m.bus.Publish(events.StateChanged{From: from.String(), To: to.String()})
	})
}

func (m *Manager) setLoadingLocked(loading bool) {
	if m.loading == loading {
		return
	}
	m.loading = loading
	m.after = append(m.after, func() {
		m.bus.Publish(events.LoadingChanged{Loading: loading})
	})
}

// unlock releases the mutex and runs queued side effects outside it. Only
// one goroutine drains at a time, so the recorder and subscribers see
// messages in store order. A caller that finds a drain in progress leaves
// its effects to that goroutine.
func (m *Manager) unlock() {
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.after) > 0 {
		pending := m.after
		m.after = nil
		m.mu.Unlock()
		for _, fn := range pending {
			fn()
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func askErrorText(err error) string {
	if apiErr, ok := transport.IsAPIError(err); ok {
		detail := apiErr.Detail
		if detail == "" {
			detail = "Unknown error"
		}
		return "Sorry, server error: " + detail
	}
	if errors.Is(err, transport.ErrUnreachable) {
		return UnreachableText
	}
	return GenericErrorText
}
