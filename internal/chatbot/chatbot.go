// Package chatbot is the line-oriented chat REPL. It wires the
// conversation manager, renderer, thread list, persistence and agent
// configuration together and maps slash commands onto them.
package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"AgentChat/internal/agentconfig"
	"AgentChat/internal/config"
	"AgentChat/internal/conversation"
	"AgentChat/internal/events"
	"AgentChat/internal/render"
	"AgentChat/internal/session"
	"AgentChat/internal/store"
	"AgentChat/internal/teamchat"
	"AgentChat/internal/transport"

	"go.opentelemetry.io/otel/metric"
)

// Options are the collaborators of a ChatBot. Store may be nil, in which
// case threads only live for the process lifetime.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Meter  metric.Meter
	Client *transport.Client
	Dialer *transport.Dialer
	Store  *store.SQLite
	In     io.Reader
	Out    io.Writer
}

// ChatBot represents the main application
type ChatBot struct {
	cfg      *config.Config
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
	outMu    sync.Mutex
	bus      *events.Bus
	renderer *render.Renderer
	persist  *store.SQLite
	manager  *conversation.Manager
	threads  *session.ThreadList

	// agent configuration screens
	builder    *agentconfig.Builder
	supervisor agentconfig.SupervisorProfile
	panel      *agentconfig.TaskPanel
	service    *agentconfig.Service
	team       *teamchat.Session

	mu       sync.Mutex
	stores   map[string]*session.Store
	sources  []session.Citation
	lastView render.View
}

// New creates a ChatBot and opens the configured or a fresh thread
func New(ctx context.Context, opts Options) (*ChatBot, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if opts.Client == nil || opts.Dialer == nil {
		return nil, fmt.Errorf("backend client and dialer are required")
	}
	if opts.In == nil || opts.Out == nil {
		return nil, fmt.Errorf("input and output are required")
	}

	cb := &ChatBot{
		cfg:        opts.Config,
		logger:     opts.Logger,
		in:         opts.In,
		out:        opts.Out,
		bus:        events.NewBus(),
		persist:    opts.Store,
		builder:    agentconfig.NewBuilder(opts.Config.MaxTurns),
		supervisor: agentconfig.DefaultSupervisor(),
		panel:      agentconfig.NewTaskPanel(),
		stores:     make(map[string]*session.Store),
	}
	cb.renderer = render.NewRenderer(cb.bus)

	var err error
	if cb.service, err = agentconfig.NewService(opts.Client, opts.Logger); err != nil {
		return nil, err
	}
	if cb.team, err = teamchat.New(opts.Client, opts.Logger); err != nil {
		return nil, err
	}

	threads, err := cb.loadThreads(ctx)
	if err != nil {
		return nil, err
	}
	cb.threads = session.NewThreadList(threads)

	current, err := cb.initialThread(ctx)
	if err != nil {
		return nil, err
	}
	first, err := cb.storeFor(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	mopts := conversation.Options{
		Asker:      opts.Client,
		Dial:       conversation.WebSocketDialer(opts.Dialer),
		Bus:        cb.bus,
		Lang:       opts.Config.Lang,
		Logger:     opts.Logger,
		Meter:      opts.Meter,
		OnExchange: cb.touchThread,
	}
	if cb.persist != nil {
		mopts.Recorder = cb.persist
	}
	if cb.manager, err = conversation.NewManager(first, mopts); err != nil {
		return nil, fmt.Errorf("failed to create conversation manager: %w", err)
	}

	cb.bus.Subscribe(cb.handleEvent)
	return cb, nil
}

// Run reads lines until EOF or /quit
func (cb *ChatBot) Run(ctx context.Context) error {
	defer cb.manager.Close()

	cb.println("=== AgentChat ===")
	cb.printf("Thread: %s\n", cb.manager.Store().ThreadID())
	cb.printf("Backend: %s\n", cb.cfg.APIBaseURL)
	cb.println("Type /help for commands, /quit to exit")
	cb.println()
	cb.printHistory(cb.manager.Store())

	scanner := bufio.NewScanner(cb.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.printf("Error: %v\n", err)
				cb.logger.Error("command error", "command", input, "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if err := cb.manager.Submit(ctx, input); err != nil {
			cb.logger.Error("failed to send message", "error", err)
		}
	}
	// input closed on cancellation is a normal exit
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cb.println("Goodbye!")
	return nil
}

// handleEvent prints messages of the active thread as they are appended
// and tracks the sources panel. It runs on whichever goroutine appended,
// including the stream reader.
func (cb *ChatBot) handleEvent(e events.Event) {
	switch e := e.(type) {
	case events.MessageAppended:
		if e.ThreadID != cb.manager.Store().ThreadID() || e.Message.Role == session.RoleUser {
			return
		}
		if isSessionStart(e.Message) {
			// announced on the state change instead
			return
		}
		v := cb.renderer.RenderMessage(e.Message)
		if e.Message.Role == session.RoleAssistant {
			cb.mu.Lock()
			cb.lastView = v
			cb.mu.Unlock()
		}
		cb.println(render.FormatMessage(e.Message, v))
		cb.println()
	case events.SourcesUpdated:
		cb.mu.Lock()
		cb.sources = e.Citations
		cb.mu.Unlock()
	case events.StateChanged:
		cb.logger.Debug("conversation state changed", "from", e.From, "to", e.To)
		if e.To == conversation.StateStreamingOpen.String() {
			cb.println("Interactive session started. Messages now go to the agent team.")
			cb.println()
		}
	}
}

func (cb *ChatBot) loadThreads(ctx context.Context) ([]session.Thread, error) {
	if cb.persist == nil {
		return nil, nil
	}
	threads, err := cb.persist.ListThreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load threads: %w", err)
	}
	return threads, nil
}

func (cb *ChatBot) initialThread(ctx context.Context) (session.Thread, error) {
	if id := cb.cfg.ThreadID; id != "" {
		t, err := cb.threads.Get(id)
		if err == nil {
			cb.logger.Info("resumed thread", "thread_id", id)
			return t, nil
		}
		cb.logger.Warn("failed to load thread, creating new one", "thread_id", id, "error", err)
	}
	return cb.createThread(ctx)
}

func (cb *ChatBot) createThread(ctx context.Context) (session.Thread, error) {
	t, err := cb.threads.New()
	if err != nil {
		return session.Thread{}, err
	}
	cb.saveThread(ctx, t)
	cb.logger.Info("created new thread", "thread_id", t.ID)
	return t, nil
}

// storeFor returns the message store of a thread, loading its history
// the first time
func (cb *ChatBot) storeFor(ctx context.Context, id string) (*session.Store, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if s, ok := cb.stores[id]; ok {
		return s, nil
	}

	var history []session.Message
	if cb.persist != nil {
		msgs, err := cb.persist.LoadMessages(ctx, id)
		if err != nil {
			return nil, err
		}
		history = msgs
	}
	s := session.NewStore(id, history)
	cb.stores[id] = s
	return s, nil
}

func (cb *ChatBot) switchTo(ctx context.Context, id string) error {
	s, err := cb.storeFor(ctx, id)
	if err != nil {
		return err
	}
	// the notice lands in the thread being left, which is no longer printed
	streaming := cb.manager.State() == conversation.StateStreamingOpen
	cb.manager.SwitchThread(s)
	if streaming {
		cb.println(conversation.SessionEndedText)
		cb.println()
	}

	cb.mu.Lock()
	cb.sources = nil
	cb.lastView = nil
	cb.mu.Unlock()

	cb.printf("Switched to thread %s\n\n", id)
	cb.printHistory(s)
	return nil
}

func (cb *ChatBot) touchThread(threadID, query string) {
	t, err := cb.threads.Touch(threadID, query, 2)
	if err != nil {
		cb.logger.Warn("failed to update thread", "thread_id", threadID, "error", err)
		return
	}
	cb.saveThread(context.Background(), t)
}

func (cb *ChatBot) saveThread(ctx context.Context, t session.Thread) {
	if cb.persist == nil {
		return
	}
	if err := cb.persist.SaveThread(ctx, t); err != nil {
		cb.logger.Error("failed to save thread", "thread_id", t.ID, "error", err)
	}
}

func (cb *ChatBot) deleteThread(ctx context.Context, id string) error {
	if err := cb.threads.Delete(id); err != nil {
		return err
	}
	if cb.persist != nil {
		if err := cb.persist.DeleteThread(ctx, id); err != nil && !errors.Is(err, session.ErrThreadNotFound) {
			return err
		}
	}
	cb.mu.Lock()
	delete(cb.stores, id)
	cb.mu.Unlock()

	if id != cb.manager.Store().ThreadID() {
		return nil
	}
	if remaining := cb.threads.All(); len(remaining) > 0 {
		return cb.switchTo(ctx, remaining[0].ID)
	}
	t, err := cb.createThread(ctx)
	if err != nil {
		return err
	}
	return cb.switchTo(ctx, t.ID)
}

func (cb *ChatBot) printHistory(s *session.Store) {
	for _, msg := range s.Messages() {
		if isSessionStart(msg) {
			cb.println(render.FormatMessage(
				session.Message{Role: session.RoleSystem},
				render.PlainView{Text: "Interactive session started."},
			))
			continue
		}
		cb.println(render.FormatMessage(msg, render.Dispatch(msg.Content)))
	}
	if s.Len() > 0 {
		cb.println()
	}
}

func isSessionStart(msg session.Message) bool {
	return msg.Content.Type == session.TypeInteractiveSessionStart && msg.Content.Text == ""
}

func (cb *ChatBot) println(a ...any) {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	fmt.Fprintln(cb.out, a...)
}

func (cb *ChatBot) printf(format string, a ...any) {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	fmt.Fprintf(cb.out, format, a...)
}
