package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Stage string

const (
	StageGreet     Stage = "greet"
	StageAskDoctor Stage = "ask_doctor"
	StageAskDate   Stage = "ask_date"
	StageAskTime   Stage = "ask_time"
	StageAskEmail  Stage = "ask_email"
	StageConfirm   Stage = "confirm"
	StageDone      Stage = "done"
)

var (
	ErrSessionNotFound = errors.New("dialogue session not found")
	ErrSessionBusy     = errors.New("dialogue session is handling another turn")
)

// Collected holds the answers gathered so far, kept exactly as extracted.
type Collected struct {
	DoctorID   string `json:"doctor_id,omitempty"`
	DoctorName string `json:"doctor_name,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Email      string `json:"email,omitempty"`
}

type Session struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Collected Collected `json:"collected"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists dialogue sessions between turns.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// TurnLocker serializes turns of the same session.
type TurnLocker interface {
	WithSessionLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error
}

// MemorySessionStore keeps sessions in process. Expired sessions are dropped lazily on Get.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	cp.UpdatedAt = m.now()
	m.sessions[s.ID] = cp
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
