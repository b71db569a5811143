package session

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a session id is not in the store.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned when creating a session with an id already in use.
	ErrExists = errors.New("session already exists")
)

// Store is the injectable session table. Implementations must hand back the
// same *Session instance on every Get so mutation stays visible to all
// holders. There is no delete: sessions live for the process lifetime, which
// is acceptable at single-active-session scale.
type Store interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	SetStatus(id string, status Status) error
}

// MemoryStore is the in-process Store used at the top-level wiring point.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// now is swappable in tests.
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, ErrExists
	}
	sess := &Session{
		ID:             id,
		StreamCallID:   CallID(id),
		StreamCallType: DefaultCallType,
		Status:         StatusWaiting,
		CreatedAt:      s.now(),
	}
	s.sessions[id] = sess
	return sess, nil
}

func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) SetStatus(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Status = status
	return nil
}
