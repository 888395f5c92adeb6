// Package session keeps bounded, expiring conversation histories keyed by
// session id.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

const (
	DefaultMaxMessages    = 20
	DefaultSessionTimeout = 30 * time.Minute
)

type session struct {
	mu         sync.Mutex
	messages   []domain.Message
	lastAccess time.Time
	// deleted is set under mu once the session leaves the map, so a writer
	// holding a stale pointer retries against the map.
	deleted bool
}

// Memory stores sessions. Operations on one session are linearizable;
// different sessions never block each other.
type Memory struct {
	maxMessages int
	timeout     time.Duration
	now         func() time.Time
	sessions    sync.Map
	logger      *slog.Logger
}

// Option configures a Memory.
type Option func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a store keeping at most maxMessages per session and
// expiring sessions idle for longer than timeout. Non-positive values fall
// back to the defaults.
func NewMemory(maxMessages int, timeout time.Duration, opts ...Option) *Memory {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	m := &Memory{
		maxMessages: maxMessages,
		timeout:     timeout,
		now:         time.Now,
		logger:      log.NewModuleLogger("session", "memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession registers a new empty session and sweeps expired ones.
func (m *Memory) CreateSession() string {
	id := uuid.NewString()
	m.sessions.Store(id, &session{lastAccess: m.now()})
	m.logger.Info("session created", "session_id", id)
	m.sweep()
	return id
}

// AddSystemMessage appends a system message, creating the session if needed.
func (m *Memory) AddSystemMessage(id, text string) {
	m.add(id, domain.Message{Role: domain.RoleSystem, Content: text})
}

// AddUserMessage appends a user message, creating the session if needed.
func (m *Memory) AddUserMessage(id, text string) {
	m.add(id, domain.Message{Role: domain.RoleUser, Content: text})
}

// AddAIMessage appends a model reply, creating the session if needed.
func (m *Memory) AddAIMessage(id, text string) {
	m.add(id, domain.Message{Role: domain.RoleAssistant, Content: text})
}

// AppendTurn appends a user prompt, first adding systemPrompt when the
// history is empty, and returns the resulting history. Both steps happen
// under one lock.
func (m *Memory) AppendTurn(id, systemPrompt, userPrompt string) []domain.Message {
	var snapshot []domain.Message
	m.withSession(id, func(s *session) {
		if len(s.messages) == 0 {
			m.appendLocked(s, domain.Message{Role: domain.RoleSystem, Content: systemPrompt})
		}
		m.appendLocked(s, domain.Message{Role: domain.RoleUser, Content: userPrompt})
		snapshot = cloneMessages(s.messages)
	})
	return snapshot
}

// Messages returns a copy of the session history, or an empty slice for an
// unknown session.
func (m *Memory) Messages(id string) []domain.Message {
	v, ok := m.sessions.Load(id)
	if !ok {
		m.logger.Debug("session not found", "session_id", id)
		return []domain.Message{}
	}
	s := v.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return []domain.Message{}
	}
	s.lastAccess = m.now()
	return cloneMessages(s.messages)
}

// ClearSession empties the history but keeps the session registered.
func (m *Memory) ClearSession(id string) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return
	}
	s := v.(*session)
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	m.logger.Info("session cleared", "session_id", id)
}

// DeleteSession removes the session.
func (m *Memory) DeleteSession(id string) {
	v, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	s := v.(*session)
	s.mu.Lock()
	s.deleted = true
	s.mu.Unlock()
	m.logger.Info("session deleted", "session_id", id)
}

// Exists reports whether id is registered.
func (m *Memory) Exists(id string) bool {
	_, ok := m.sessions.Load(id)
	return ok
}

// ActiveSessionCount sweeps expired sessions and counts the rest.
func (m *Memory) ActiveSessionCount() int {
	m.sweep()
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (m *Memory) add(id string, msg domain.Message) {
	m.withSession(id, func(s *session) {
		m.appendLocked(s, msg)
	})
}

// withSession runs fn with the live session for id locked, creating the
// session when absent.
func (m *Memory) withSession(id string, fn func(*session)) {
	for {
		v, loaded := m.sessions.LoadOrStore(id, &session{lastAccess: m.now()})
		if !loaded {
			m.logger.Warn("session not found, created implicitly", "session_id", id)
		}
		s := v.(*session)
		s.mu.Lock()
		if s.deleted {
			s.mu.Unlock()
			continue
		}
		fn(s)
		s.lastAccess = m.now()
		s.mu.Unlock()
		return
	}
}

func (m *Memory) appendLocked(s *session, msg domain.Message) {
	s.messages = append(s.messages, msg)
	if over := len(s.messages) - m.maxMessages; over > 0 {
		s.messages = append([]domain.Message(nil), s.messages[over:]...)
	}
}

func (m *Memory) sweep() {
	now := m.now()
	m.sessions.Range(func(key, value any) bool {
		s := value.(*session)
		s.mu.Lock()
		if now.Sub(s.lastAccess) > m.timeout {
			s.deleted = true
			m.sessions.CompareAndDelete(key, value)
			m.logger.Info("session expired", "session_id", key)
		}
		s.mu.Unlock()
		return true
	})
}

func cloneMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, len(in))
	copy(out, in)
	return out
}
