package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/google/uuid"
)

// SessionRepository keeps the session index in process memory. It backs
// deployments that run without Postgres.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]entity.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]entity.Session)}
}

func (r *SessionRepository) Create(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) Update(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return fmt.Errorf("session not found: %s", session.ID)
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return &s, nil
}
