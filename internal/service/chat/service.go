package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidKey      = errors.New("invalid access key")
	ErrLocked          = errors.New("session is locked")
	ErrInvalidRole     = errors.New("invalid turn role")
	ErrTurnInProgress  = errors.New("a turn is already in progress for this session")
	ErrSessionReset    = errors.New("session memory was cleared during the turn")
)

// KeyChecker validates an access key.
type KeyChecker interface {
	Check(key string) bool
}

type entry struct {
	session chat.Session
	busy    bool
}

// Service holds every session's transient state in memory.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	gate     KeyChecker
	now      func() time.Time
}

// NewService bootstraps the in-memory session store.
func NewService(gate KeyChecker) *Service {
	return &Service{
		sessions: make(map[string]*entry),
		gate:     gate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions a locked, empty session bound to a profile.
func (s *Service) CreateSession(_ context.Context, profileID string, searchEnabled bool) (chat.Session, error) {
	session := chat.Session{
		ID:            uuid.NewString(),
		ProfileID:     profileID,
		SearchEnabled: searchEnabled,
		Turns:         make([]chat.Turn, 0, 16),
		CreatedAt:     s.now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session}
	s.mu.Unlock()

	return snapshot(session), nil
}

// GetSession retrieves a copy of the session.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return snapshot(e.session), nil
}

// DeleteSession drops the session and all of its turns.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Unlock sets the session's auth flag when key matches. A mismatch never relocks a session.
func (s *Service) Unlock(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if s.gate == nil || !s.gate.Check(key) {
		return ErrInvalidKey
	}
	e.session.Unlocked = true
	return nil
}

// SetSearch flips the per-session search toggle.
func (s *Service) SetSearch(_ context.Context, sessionID string, enabled bool) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	e.session.SearchEnabled = enabled
	return snapshot(e.session), nil
}

// BeginTurn claims the session's single turn slot and returns the current epoch together
// with a release func. Only one turn per session runs at a time.
func (s *Service) BeginTurn(_ context.Context, sessionID string) (uint64, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil, ErrSessionNotFound
	}
	if !e.session.Unlocked {
		return 0, nil, ErrLocked
	}
	if e.busy {
		return 0, nil, ErrTurnInProgress
	}
	e.busy = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			if current, ok := s.sessions[sessionID]; ok && current == e {
				current.busy = false
			}
			s.mu.Unlock()
		})
	}
	return e.session.Epoch, release, nil
}

// AppendTurn appends a turn to the transcript. epoch must match the value returned by
// BeginTurn, otherwise the memory was cleared in between and the turn is dropped.
func (s *Service) AppendTurn(_ context.Context, sessionID string, epoch uint64, turn chat.Turn) error {
	if !turn.Role.Valid() {
		return ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if e.session.Epoch != epoch {
		return ErrSessionReset
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	e.session.Turns = append(e.session.Turns, turn)
	return nil
}

// Transcript returns the session's turns in submission order.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Turn, len(e.session.Turns))
	copy(copied, e.session.Turns)
	return copied, nil
}

// Clear empties the transcript unconditionally and starts a new epoch.
func (s *Service) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	e.session.Turns = make([]chat.Turn, 0, 16)
	e.session.Epoch++
	return nil
}

func snapshot(session chat.Session) chat.Session {
	turns := make([]chat.Turn, len(session.Turns))
	copy(turns, session.Turns)
	session.Turns = turns
	return session
}
