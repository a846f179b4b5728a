package session

import "sync"

// Store is the ordered message history of one conversation. Entries are
// only ever appended; readers get snapshots.
type Store struct {
	mu       sync.RWMutex
	threadID string
	messages []Message
}

// NewStore creates a store for a thread, seeded with previously recorded history
func NewStore(threadID string, history []Message) *Store {
	messages := make([]Message, len(history))
	copy(messages, history)
	return &Store{
		threadID: threadID,
		messages: messages,
	}
}

// ThreadID returns the thread this store belongs to
func (s *Store) ThreadID() string {
	return s.threadID
}

// Append adds a message to the tail
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the history in insertion order
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message, if any
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
