package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"AgentChat/internal/backend"
	"AgentChat/internal/backendtest"
	"AgentChat/internal/events"
	"AgentChat/internal/render"
	"AgentChat/internal/session"
	"AgentChat/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	fake  *backendtest.Backend
	mgr   *Manager
	store *session.Store
	bus   *events.Bus
}

func newHarness(t *testing.T, configure ...func(*backendtest.Backend)) *harness {
	t.Helper()
	fake := backendtest.New()
	for _, fn := range configure {
		fn(fake)
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := transport.NewClient(srv.URL, testLogger())
	require.NoError(t, err)
	dialer, err := transport.NewDialer("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", testLogger())
	require.NoError(t, err)

	bus := events.NewBus()
	store := session.NewStore("t1", nil)
	mgr, err := NewManager(store, Options{
		Asker:  client,
		Dial:   WebSocketDialer(dialer),
		Bus:    bus,
		Logger: testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	return &harness{fake: fake, mgr: mgr, store: store, bus: bus}
}

func (h *harness) openStream(t *testing.T) {
	t.Helper()
	require.NoError(t, h.mgr.Submit(context.Background(), "start a team chat"))
	require.Equal(t, StateStreamingOpen, h.mgr.State())
}

func texts(msgs []session.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content.Text
	}
	return out
}

func TestNewManagerValidation(t *testing.T) {
	store := session.NewStore("t1", nil)
	dial := func(context.Context, transport.StreamHandler) (Stream, error) { return nil, nil }

	_, err := NewManager(store, Options{Asker: &stubAsker{}, Dial: dial})
	assert.Error(t, err, "logger required")
	_, err = NewManager(store, Options{Dial: dial, Logger: testLogger()})
	assert.Error(t, err, "asker required")
	_, err = NewManager(store, Options{Asker: &stubAsker{}, Logger: testLogger()})
	assert.Error(t, err, "dialer required")
	_, err = NewManager(nil, Options{Asker: &stubAsker{}, Dial: dial, Logger: testLogger()})
	assert.Error(t, err, "store required")
}

func TestSubmitOneShotAnswer(t *testing.T) {
	h := newHarness(t)

	var states []string
	h.bus.Subscribe(func(e events.Event) {
		if sc, ok := e.(events.StateChanged); ok {
			states = append(states, sc.To)
		}
	})

	require.NoError(t, h.mgr.Submit(context.Background(), "what is go"))

	msgs := h.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is go", msgs[0].Content.Text)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.Equal(t, session.TypeAnswer, msgs[1].Content.Type)
	assert.Equal(t, "echo: what is go", msgs[1].Content.Text)

	assert.Equal(t, StateIdle, h.mgr.State())
	assert.False(t, h.mgr.Loading())
	assert.Equal(t, []string{"one_shot_pending", "idle"}, states)
	assert.Equal(t, 1, h.fake.Calls("/api/ask"))
}

func TestSubmitBlankIsNoop(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.mgr.Submit(context.Background(), "   \n"))
	assert.Zero(t, h.store.Len())
	assert.Zero(t, h.fake.Calls("/api/ask"))
}

func TestSubmitServerErrorBecomesMessage(t *testing.T) {
	h := newHarness(t, func(b *backendtest.Backend) {
		b.Ask = func(backend.AskRequest) (int, any) {
			return http.StatusInternalServerError, backend.ErrorResponse{Detail: "index offline"}
		}
	})

	require.NoError(t, h.mgr.Submit(context.Background(), "hello"))

	last, ok := h.store.Last()
	require.True(t, ok)
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, "Sorry, server error: index offline", last.Content.Text)
	assert.Equal(t, StateIdle, h.mgr.State())
	assert.False(t, h.mgr.Loading())
}

func TestSubmitUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := transport.NewClient(url, testLogger())
	require.NoError(t, err)
	store := session.NewStore("t1", nil)
	mgr, err := NewManager(store, Options{
		Asker:  client,
		Dial:   func(context.Context, transport.StreamHandler) (Stream, error) { return nil, errors.New("unused") },
		Logger: testLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Submit(context.Background(), "hello"))
	last, _ := store.Last()
	assert.Equal(t, UnreachableText, last.Content.Text)
	assert.Equal(t, StateIdle, mgr.State())
}

func TestInteractiveSessionStartOpensStream(t *testing.T) {
	h := newHarness(t)
	h.openStream(t)

	msgs := h.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.TypeInteractiveSessionStart, msgs[1].Content.Type)
	assert.False(t, h.mgr.Loading())
}

func TestStreamingOpenRoutesInputOverStream(t *testing.T) {
	h := newHarness(t)
	h.openStream(t)
	asks := h.fake.Calls("/api/ask")

	require.NoError(t, h.mgr.Submit(context.Background(), "plan the trip"))

	require.Eventually(t, func() bool { return h.store.Len() == 4 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, asks, h.fake.Calls("/api/ask"), "no HTTP request while streaming")
	assert.Equal(t, []string{"plan the trip"}, h.fake.Received())

	last, _ := h.store.Last()
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, "Supervisor", last.Sender)
	assert.Equal(t, "ack: plan the trip", last.Content.Text)
	assert.Equal(t, StateStreamingOpen, h.mgr.State())
	assert.False(t, h.mgr.Loading())
}

func TestServerEndsStream(t *testing.T) {
	h := newHarness(t)
	h.openStream(t)

	require.NoError(t, h.mgr.Submit(context.Background(), backendtest.StreamEnd))

	require.Eventually(t, func() bool { return h.mgr.State() == StateIdle }, waitFor, 10*time.Millisecond)
	msgs := h.store.Messages()
	assert.Equal(t, []string{
		"start a team chat",
		"",
		backendtest.StreamEnd,
		"Goodbye from the team.",
		SessionEndedText,
	}, texts(msgs))
	assert.Equal(t, session.RoleSystem, msgs[len(msgs)-1].Role)
	assert.False(t, h.mgr.Loading())

	// the next input goes back to one-shot
	require.NoError(t, h.mgr.Submit(context.Background(), "after"))
	last, _ := h.store.Last()
	assert.Equal(t, "echo: after", last.Content.Text)
}

func TestDroppedStreamAppendsErrorAndNotice(t *testing.T) {
	h := newHarness(t)
	h.openStream(t)

	require.Eventually(t, func() bool {
		h.fake.DropStreams()
		return h.mgr.State() == StateIdle
	}, waitFor, 10*time.Millisecond)

	msgs := h.store.Messages()
	require.GreaterOrEqual(t, len(msgs), 4)
	assert.Equal(t, LostConnectionText, msgs[len(msgs)-2].Content.Text)
	assert.Equal(t, SessionEndedText, msgs[len(msgs)-1].Content.Text)
}

func TestDialFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, func(b *backendtest.Backend) { b.RejectStreams = true })

	require.NoError(t, h.mgr.Submit(context.Background(), "team please"))

	assert.Equal(t, StateIdle, h.mgr.State())
	assert.False(t, h.mgr.Loading())
	last, _ := h.store.Last()
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, LostConnectionText, last.Content.Text)
}

func TestSwitchThreadClosesStream(t *testing.T) {
	h := newHarness(t)
	h.openStream(t)

	next := session.NewStore("t2", nil)
	h.mgr.SwitchThread(next)

	assert.Equal(t, StateIdle, h.mgr.State())
	assert.Same(t, next, h.mgr.Store())
	last, _ := h.store.Last()
	assert.Equal(t, SessionEndedText, last.Content.Text)
	assert.Zero(t, next.Len())

	// one notice only, even once the server side notices the close
	time.Sleep(50 * time.Millisecond)
	count := 0
	for _, m := range h.store.Messages() {
		if m.Content.Text == SessionEndedText {
			count++
		}
	}
	assert.Equal(t, 1, count)

	require.NoError(t, h.mgr.Submit(context.Background(), "fresh"))
	assert.Equal(t, []string{"fresh", "echo: fresh"}, texts(next.Messages()))
}

func TestUploadMessages(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.mgr.Upload(context.Background(), "notes.txt", strings.NewReader("hello")))
	assert.Equal(t, []string{
		"Uploading notes.txt...",
		"Successfully ingested 'notes.txt'. 1 chunks added.",
	}, texts(h.store.Messages()))

	require.NoError(t, h.mgr.Upload(context.Background(), "empty.txt", strings.NewReader("")))
	last, _ := h.store.Last()
	assert.Equal(t, session.RoleSystem, last.Role)
	assert.Equal(t, "Error uploading empty.txt.", last.Content.Text)
	assert.False(t, h.mgr.Loading())
	assert.Equal(t, StateIdle, h.mgr.State())
}

func TestPickSubmitsFollowUp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.mgr.Submit(context.Background(), "q"))

	last, _ := h.store.Last()
	v := render.Dispatch(last.Content)
	require.NoError(t, h.mgr.Pick(context.Background(), v, 1))

	last, _ = h.store.Last()
	assert.Equal(t, "echo: Tell me more", last.Content.Text)
	assert.Error(t, h.mgr.Pick(context.Background(), v, 2))
}

func TestMessageAppendedPublishedAndRecorded(t *testing.T) {
	rec := &stubRecorder{}
	bus := events.NewBus()
	var appended []events.MessageAppended
	bus.Subscribe(func(e events.Event) {
		if ma, ok := e.(events.MessageAppended); ok {
			appended = append(appended, ma)
		}
	})
	var exchanged []string

	store := session.NewStore("t9", nil)
	mgr, err := NewManager(store, Options{
		Asker:      &stubAsker{content: session.AnswerContent("hi")},
		Dial:       func(context.Context, transport.StreamHandler) (Stream, error) { return nil, errors.New("unused") },
		Bus:        bus,
		Recorder:   rec,
		Logger:     testLogger(),
		OnExchange: func(threadID, q string) { exchanged = append(exchanged, threadID+":"+q) },
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Submit(context.Background(), "hello"))

	require.Len(t, appended, 2)
	assert.Equal(t, "t9", appended[0].ThreadID)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, []string{"t9:hello"}, exchanged)
}

func TestLateResponseGoesToOriginalThread(t *testing.T) {
	release := make(chan struct{})
	asker := &stubAsker{content: session.AnswerContent("late answer"), wait: release}
	first := session.NewStore("t1", nil)
	mgr, err := NewManager(first, Options{
		Asker:  asker,
		Dial:   func(context.Context, transport.StreamHandler) (Stream, error) { return nil, errors.New("unused") },
		Logger: testLogger(),
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mgr.Submit(context.Background(), "slow question")
	}()
	require.Eventually(t, func() bool { return mgr.State() == StateOneShotPending }, waitFor, 5*time.Millisecond)

	second := session.NewStore("t2", nil)
	mgr.SwitchThread(second)
	close(release)
	<-done

	assert.Equal(t, []string{"slow question", "late answer"}, texts(first.Messages()))
	assert.Zero(t, second.Len())
	assert.Equal(t, StateIdle, mgr.State())
	assert.False(t, mgr.Loading())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "one_shot_pending", StateOneShotPending.String())
	assert.Equal(t, "streaming_open", StateStreamingOpen.String())
	assert.Equal(t, "streaming_closed", StateStreamingClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

type stubAsker struct {
	content session.Content
	err     error
	wait    chan struct{}
}

func (s *stubAsker) Ask(ctx context.Context, query, lang string) (session.Content, error) {
	if s.wait != nil {
		<-s.wait
	}
	return s.content, s.err
}

func (s *stubAsker) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	return "ok", nil
}

type stubRecorder struct {
	mu   sync.Mutex
	msgs []session.Message
}

func (r *stubRecorder) AppendMessage(ctx context.Context, threadID string, msg session.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type stubStream struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubStream) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubStream) Close() error { return nil }

// streamingManager returns a manager whose stream is open on a stub that
// never replies; frames are delivered through the returned handler
func streamingManager(t *testing.T, opts Options) (*Manager, *session.Store, transport.StreamHandler) {
	t.Helper()
	var handler transport.StreamHandler
	opts.Asker = &stubAsker{content: session.Content{Type: session.TypeInteractiveSessionStart}}
	opts.Dial = func(_ context.Context, h transport.StreamHandler) (Stream, error) {
		handler = h
		return &stubStream{}, nil
	}
	opts.Logger = testLogger()

	store := session.NewStore("t1", nil)
	mgr, err := NewManager(store, opts)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	require.NoError(t, mgr.Submit(context.Background(), "go"))
	require.Equal(t, StateStreamingOpen, mgr.State())
	require.NotNil(t, handler)
	return mgr, store, handler
}

func TestStreamLoadingClearsOnReplyNotOnSend(t *testing.T) {
	mgr, _, handler := streamingManager(t, Options{})

	require.NoError(t, mgr.Submit(context.Background(), "hello team"))
	assert.True(t, mgr.Loading(), "still waiting for the team")

	handler.HandleFrame([]byte("on it"))
	assert.False(t, mgr.Loading())
	assert.Equal(t, StateStreamingOpen, mgr.State())
}

// gatedRecorder blocks while recording the message whose text is gate
type gatedRecorder struct {
	stubRecorder
	gate    string
	entered chan struct{}
	release chan struct{}
}

func (r *gatedRecorder) AppendMessage(ctx context.Context, threadID string, msg session.Message) error {
	if msg.Content.Text == r.gate {
		close(r.entered)
		<-r.release
	}
	return r.stubRecorder.AppendMessage(ctx, threadID, msg)
}

func (r *gatedRecorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return texts(r.msgs)
}

func TestSideEffectsFollowStoreOrder(t *testing.T) {
	rec := &gatedRecorder{gate: "second question", entered: make(chan struct{}), release: make(chan struct{})}
	bus := events.NewBus()
	var mu sync.Mutex
	var published []string
	bus.Subscribe(func(e events.Event) {
		if ma, ok := e.(events.MessageAppended); ok {
			mu.Lock()
			published = append(published, ma.Message.Content.Text)
			mu.Unlock()
		}
	})
	mgr, store, handler := streamingManager(t, Options{Recorder: rec, Bus: bus})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mgr.Submit(context.Background(), "second question")
	}()
	<-rec.entered

	// a frame arriving while the user message is still being recorded
	handler.HandleFrame([]byte("agent reply"))
	close(rec.release)
	<-done

	want := texts(store.Messages())
	require.Equal(t, []string{"go", "", "second question", "agent reply"}, want)
	require.Eventually(t, func() bool { return len(rec.texts()) == len(want) }, waitFor, 5*time.Millisecond)
	assert.Equal(t, want, rec.texts())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, published)
}
