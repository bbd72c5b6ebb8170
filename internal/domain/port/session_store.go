package port

import "github.com/framelab/frame-extraction-service/internal/domain/entity"

// SessionStore owns the per-session namespace and its status record.
type SessionStore interface {
	Create() (string, error)
	Exists(sessionID string) bool
	WriteStatus(sessionID string, record entity.StatusRecord) error
	ReadStatus(sessionID string) (entity.StatusRecord, error)
}
