// Package teamchat drives a turn-based conversation with an agent team
// over /api/chat/start, /send and /step.
package teamchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"AgentChat/internal/backend"
)

// ErrNoSession is returned by Send and Step before Start succeeded
var ErrNoSession = errors.New("no team chat session started")

// UserSender is the sender name the backend gives the human participant
const UserSender = "UserProxy"

// API is the subset of the backend client a team chat needs
type API interface {
	StartChat(ctx context.Context, cfg backend.TeamConfig) (backend.StartChatResponse, error)
	SendChat(ctx context.Context, sessionID, message string) (backend.NewMessagesResponse, error)
	StepChat(ctx context.Context, sessionID string) (backend.NewMessagesResponse, error)
}

// Session is one team conversation. The zero value is not usable; call New.
type Session struct {
	api    API
	logger *slog.Logger

	mu       sync.Mutex
	id       string
	messages []backend.TeamMessage
}

// New creates a session that has not started yet
func New(api API, logger *slog.Logger) (*Session, error) {
	if api == nil {
		return nil, fmt.Errorf("api cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Session{api: api, logger: logger}, nil
}

// ID returns the backend session id, empty before Start
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Messages returns a copy of the conversation so far
func (s *Session) Messages() []backend.TeamMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.TeamMessage(nil), s.messages...)
}

// Start begins a new conversation, discarding any previous one
func (s *Session) Start(ctx context.Context, cfg backend.TeamConfig) error {
	resp, err := s.api.StartChat(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start team chat: %w", err)
	}

	s.mu.Lock()
	s.id = resp.SessionID
	s.messages = append([]backend.TeamMessage(nil), resp.InitialMessages...)
	s.mu.Unlock()

	s.logger.Info("started team chat", "session_id", resp.SessionID, "messages", len(resp.InitialMessages))
	return nil
}

// Send posts a user message. The message is shown immediately and rolled
// back when the request fails; the text is returned so it can be edited
// and sent again.
func (s *Session) Send(ctx context.Context, text string) ([]backend.TeamMessage, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", nil
	}

	s.mu.Lock()
	id := s.id
	if id == "" {
		s.mu.Unlock()
		return nil, text, ErrNoSession
	}
	pending := len(s.messages)
	s.messages = append(s.messages, backend.TeamMessage{Sender: UserSender, Role: "user", Content: text})
	s.mu.Unlock()

	resp, err := s.api.SendChat(ctx, id, text)
	if err != nil {
		s.mu.Lock()
		if s.id == id && len(s.messages) > pending {
			s.messages = append(s.messages[:pending], s.messages[pending+1:]...)
		}
		s.mu.Unlock()
		s.logger.Warn("team chat send failed", "session_id", id, "error", err)
		return nil, text, fmt.Errorf("failed to send message: %w", err)
	}

	s.appendIfCurrent(id, resp.NewMessages)
	return resp.NewMessages, "", nil
}

// Step advances the conversation by one agent turn without user input
func (s *Session) Step(ctx context.Context) ([]backend.TeamMessage, error) {
	id := s.ID()
	if id == "" {
		return nil, ErrNoSession
	}
	resp, err := s.api.StepChat(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to step team chat: %w", err)
	}
	s.appendIfCurrent(id, resp.NewMessages)
	return resp.NewMessages, nil
}

func (s *Session) appendIfCurrent(id string, msgs []backend.TeamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != id {
		return
	}
	s.messages = append(s.messages, msgs...)
}
