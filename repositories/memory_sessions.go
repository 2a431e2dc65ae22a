package repositories

import (
	"context"
	"sync"
	"time"

	"doc-chat/models"
)

// MemorySessionRepository keeps sessions in process memory.
// Sessions are lost on restart.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: map[string]*models.ChatSession{}}
}

func (r *MemorySessionRepository) Insert(_ context.Context, s *models.ChatSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = clone(s)
	return nil
}

// FindByID returns a copy; mutating it does not change the stored session.
func (r *MemorySessionRepository) FindByID(_ context.Context, id string) (*models.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(s), nil
}

func (r *MemorySessionRepository) AppendMessages(_ context.Context, id string, msgs ...models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func clone(s *models.ChatSession) *models.ChatSession {
	c := *s
	c.Messages = append([]models.ChatMessage{}, s.Messages...)
	return &c
}
