package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/models"
)

type Flow string

const (
	FlowEdit   Flow = "edit"
	FlowDelete Flow = "delete"
)

type State string

const (
	StateAwaitTitle        State = "await_title"
	StateAwaitText         State = "await_text"
	StateAwaitImagePrompt  State = "await_image_prompt"
	StateAwaitConfirmation State = "await_confirmation"
)

// Session is the transient context of one multi-step flow. Pending fields are
// nil when the user chose to keep the stored value.
type Session struct {
	Key         string      `json:"key"`
	ChatID      string      `json:"chat_id"`
	Flow        Flow        `json:"flow"`
	State       State       `json:"state"`
	PostID      string      `json:"post_id"`
	Original    models.Post `json:"original"`
	Title       *string     `json:"title,omitempty"`
	Text        *string     `json:"text,omitempty"`
	ImagePrompt *string     `json:"image_prompt,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// SessionStore keeps at most one session per key. Get returns nil, nil when
// there is none.
type SessionStore interface {
	Get(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

// NewMemoryStore returns a process-local store. Sessions idle for longer than
// ttl are dropped on access; ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: map[string]Session{}}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, key)
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = m.now()
	m.sessions[s.Key] = *s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, key)
	return nil
}
