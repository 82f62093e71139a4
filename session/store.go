package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"iped-studio/models"
)

const sessionTTL = 30 * 24 * time.Hour

// Store keeps researcher sessions in memory. Sessions expire after 30
// days or on logout; a background routine prunes expired entries.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	stop     chan struct{}
	stopOnce sync.Once
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		stop:     make(chan struct{}),
	}
}

func (s *Store) Create(userID, email, username string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := uuid.New().String()
	session := &models.Session{
		ID:         sessionID,
		UserID:     userID,
		Email:      email,
		Username:   username,
		ExpiresAt:  time.Now().Add(sessionTTL),
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}

	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) Get(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, nil
	}

	return session, nil
}

func (s *Store) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.sessions[sessionID]; exists {
		session.LastUsedAt = time.Now()
	}
}

func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if time.Now().After(session.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

// StartCleanupRoutine prunes expired sessions hourly until Stop is
// called.
func (s *Store) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.CleanupExpired()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
