package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultThreadTitle is the title given to freshly created threads
const DefaultThreadTitle = "New Conversation"

// ErrThreadNotFound is returned when a thread ID is unknown
var ErrThreadNotFound = errors.New("thread not found")

// Thread is one conversation in the sidebar list
type Thread struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"last_message"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
}

// ThreadList keeps conversation threads newest first
type ThreadList struct {
	mu      sync.RWMutex
	threads []Thread
}

// NewThreadList creates a list from previously stored threads
func NewThreadList(threads []Thread) *ThreadList {
	list := make([]Thread, len(threads))
	copy(list, threads)
	return &ThreadList{threads: list}
}

// New creates an empty thread and puts it at the front of the list
func (l *ThreadList) New() (Thread, error) {
	id, err := gonanoid.New()
	if err != nil {
		return Thread{}, fmt.Errorf("failed to generate thread id: %w", err)
	}
	t := Thread{
		ID:        id,
		Title:     DefaultThreadTitle,
		Timestamp: time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.threads = append([]Thread{t}, l.threads...)
	return t, nil
}

// Get returns a thread by ID
func (l *ThreadList) Get(id string) (Thread, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.threads {
		if t.ID == id {
			return t, nil
		}
	}
	return Thread{}, ErrThreadNotFound
}

// Rename changes a thread's title
func (l *ThreadList) Rename(id, title string) (Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Thread{}, fmt.Errorf("title cannot be empty")
	}
	return l.update(id, func(t *Thread) {
		t.Title = title
	})
}

// Touch records activity on a thread after an exchange
func (l *ThreadList) Touch(id, lastMessage string, added int) (Thread, error) {
	return l.update(id, func(t *Thread) {
		t.LastMessage = lastMessage
		t.Timestamp = time.Now().UTC()
		t.MessageCount += added
	})
}

// Delete removes a thread from the list
func (l *ThreadList) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.threads[:0:0]
	for _, t := range l.threads {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(l.threads) {
		return ErrThreadNotFound
	}
	l.threads = kept
	return nil
}

// Search returns threads whose title or last message contains query, ignoring case.
// An empty query returns every thread.
func (l *ThreadList) Search(query string) []Thread {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return l.All()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Thread
	for _, t := range l.threads {
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.LastMessage), query) {
			out = append(out, t)
		}
	}
	return out
}

// All returns a copy of every thread, newest first
func (l *ThreadList) All() []Thread {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Thread, len(l.threads))
	copy(out, l.threads)
	return out
}

func (l *ThreadList) update(id string, fn func(*Thread)) (Thread, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.threads {
		if l.threads[i].ID == id {
			fn(&l.threads[i])
			return l.threads[i], nil
		}
	}
	return Thread{}, ErrThreadNotFound
}
