// Package backendtest provides an in-process fake of the orchestration
// backend: the REST endpoints and the WebSocket channel.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"AgentChat/internal/backend"
	"AgentChat/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// StreamTrigger is the query substring that makes the default ask handler
// answer with interactive_session_start
const StreamTrigger = "team"

// StreamEnd is the text that makes the default stream handler finish the
// conversation and close the channel
const StreamEnd = "bye"

// AskFunc answers /api/ask with a status code and a JSON body
type AskFunc func(req backend.AskRequest) (int, any)

// Backend is a configurable fake backend. Zero hooks fall back to the
// default behaviour described on each field.
type Backend struct {
	// Ask defaults to an answer echoing the query, or an
	// interactive_session_start when the query contains StreamTrigger.
	Ask AskFunc
	// OnStreamOpen runs after a WebSocket is accepted; by default nothing is sent.
	OnStreamOpen func(c *Conn)
	// OnStreamText handles client text frames; by default it replies with
	// an agent_message and ends the session on StreamEnd.
	OnStreamText func(c *Conn, text string)
	// RejectStreams makes the WebSocket endpoint refuse upgrades
	RejectStreams bool

	router   chi.Router
	upgrader websocket.Upgrader

	mu       sync.Mutex
	calls    map[string]int
	bodies   map[string][]byte
	received []string
	conns    map[*Conn]struct{}
	nextChat int
}

// New creates a fake backend with default behaviour
func New() *Backend {
	b := &Backend{
		calls:  make(map[string]int),
		bodies: make(map[string][]byte),
		conns:  make(map[*Conn]struct{}),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(b.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", b.handleAsk)
		r.Post("/upload", b.handleUpload)
		r.Post("/chat/start", b.handleChatStart)
		r.Post("/chat/{sessionID}/send", b.handleChatSend)
		r.Post("/chat/{sessionID}/step", b.handleChatStep)
		r.Post("/save-config/", b.handleSaved("Configuration saved."))
		r.Post("/save-supervisor-profile/", b.handleSaved("Supervisor profile saved and reloaded."))
		r.Post("/run-saved-config/", b.handleRun("saved"))
		r.Post("/run-supervisor-profile/", b.handleRun("supervisor"))
		r.Post("/run-combined-config/", b.handleRun("combined"))
		r.Get("/example-spec", b.handleExampleSpec)
		r.Post("/run-agent", b.handleRunAgent)
	})
	r.Get("/ws", b.handleWS)

	b.router = r
	return b
}

// ServeHTTP implements http.Handler
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// Calls returns how many requests hit path
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// LastBody returns the last request body sent to path
func (b *Backend) LastBody(path string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[path]
}

// Received returns every text frame clients sent over WebSockets
func (b *Backend) Received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.received))
	copy(out, b.received)
	return out
}

// EndStreams closes every open WebSocket with a normal closure
func (b *Backend) EndStreams() {
	for _, c := range b.openConns() {
		c.End()
	}
}

// DropStreams kills every open WebSocket without a closing handshake
func (b *Backend) DropStreams() {
	for _, c := range b.openConns() {
		c.Drop()
	}
}

func (b *Backend) openConns() []*Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		out = append(out, c)
	}
	return out
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.Method == http.MethodPost {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.bodies[r.URL.Path] = body
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req backend.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorResponse{Detail: "invalid body"})
		return
	}
	if b.Ask != nil {
		status, body := b.Ask(req)
		writeJSON(w, status, body)
		return
	}
	if strings.Contains(strings.ToLower(req.Query), StreamTrigger) {
		writeJSON(w, http.StatusOK, session.Content{Type: session.TypeInteractiveSessionStart})
		return
	}
	writeJSON(w, http.StatusOK, session.Content{
		Type:      session.TypeAnswer,
		Text:      "echo: " + req.Query,
		FollowUps: []string{"Tell me more"},
	})
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, backend.ErrorResponse{Detail: "No file name provided."})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, backend.ErrorResponse{Detail: "Could not process file: " + header.Filename})
		return
	}
	writeJSON(w, http.StatusOK, backend.UploadResponse{
		Message: fmt.Sprintf("Successfully ingested '%s'. 1 chunks added.", header.Filename),
	})
}

func (b *Backend) handleChatStart(w http.ResponseWriter, r *http.Request) {
	var cfg backend.TeamConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil || cfg.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, backend.ErrorResponse{Detail: "prompt is required"})
		return
	}
	b.mu.Lock()
	b.nextChat++
	id := fmt.Sprintf("chat-%d", b.nextChat)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, backend.StartChatResponse{
		SessionID: id,
		InitialMessages: []backend.TeamMessage{
			{Sender: "UserProxy", Role: "user", Content: cfg.Prompt},
			{Sender: "Supervisor", Content: fmt.Sprintf("Coordinating %d assistants.", len(cfg.Assistants))},
		},
	})
}

func (b *Backend) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req backend.SendChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, backend.ErrorResponse{Detail: "invalid body"})
		return
	}
	if chi.URLParam(r, "sessionID") == "missing" {
		writeJSON(w, http.StatusNotFound, backend.ErrorResponse{Detail: "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, backend.NewMessagesResponse{
		NewMessages: []backend.TeamMessage{{Sender: "Supervisor", Content: "noted: " + req.Message}},
	})
}

func (b *Backend) handleChatStep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, backend.NewMessagesResponse{
		NewMessages: []backend.TeamMessage{{Sender: "APISearchAgent", Text: "step for " + chi.URLParam(r, "sessionID")}},
	})
}

func (b *Backend) handleSaved(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backend.MessageResponse{Message: msg})
	}
}

func (b *Backend) handleRun(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backend.RunResponse{
			ChatHistory: []backend.TeamMessage{{Sender: "Supervisor", Content: "running " + kind}},
			Response:    "done: " + kind,
		})
	}
}

func (b *Backend) handleExampleSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, json.RawMessage(ExampleSpecJSON))
}

func (b *Backend) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	var req backend.RunAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, backend.ErrorResponse{Detail: "invalid body"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tasks": len(req.Tasks)})
}

// ExampleSpecJSON is what /api/example-spec returns
const ExampleSpecJSON = `{
  "prompt": "Find public APIs related to animals and tell me the name of the first one.",
  "supervisor_system_message": "You are the Supervisor. Coordinate assistants step-by-step to complete the task. End with TERMINATE.",
  "max_turns": 16,
  "assistants": [
    {
      "name": "APISearchAgent",
      "system_message": "You are an expert at finding public APIs.",
      "tasks": [
        {
          "name": "search_apis",
          "description": "Search the public API catalogue",
          "endpoint": "https://api.publicapis.org/entries",
          "params_schema": {"type": "object", "properties": {"title": {"type": "string", "description": "keyword"}}, "required": ["title"]}
        }
      ]
    }
  ]
}`

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
