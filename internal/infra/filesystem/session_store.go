package filesystem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/google/uuid"
)

// SessionStore keeps session state on the local filesystem.
type SessionStore struct {
	layout Layout
}

func NewSessionStore(layout Layout) *SessionStore {
	return &SessionStore{layout: layout}
}

// Create allocates a fresh session id, its namespace, and a pending status record.
func (s *SessionStore) Create() (string, error) {
	sessionID := uuid.NewString()
	if s.Exists(sessionID) {
		return "", entity.Errorf(entity.KindConflict, "session %s already exists", sessionID)
	}

	if err := s.layout.EnsureSessionDirs(sessionID); err != nil {
		return "", err
	}
	if err := s.WriteStatus(sessionID, entity.DefaultStatus()); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Exists reports whether the session namespace was created.
func (s *SessionStore) Exists(sessionID string) bool {
	info, err := os.Stat(s.layout.FramesDir(sessionID))
	return err == nil && info.IsDir()
}

// WriteStatus replaces the status record atomically: readers see either the
// previous record or the new one, never a partial write.
func (s *SessionStore) WriteStatus(sessionID string, record entity.StatusRecord) error {
	dir := s.layout.FramesDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tmp, err := os.CreateTemp(dir, statusFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create status temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write status temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync status temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close status temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, statusFileName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist status file: %w", err)
	}
	return nil
}

// ReadStatus returns the recorded status, or the pending default when the
// session has no record yet. Fields missing from the record keep their defaults.
func (s *SessionStore) ReadStatus(sessionID string) (entity.StatusRecord, error) {
	record := entity.DefaultStatus()

	data, err := os.ReadFile(s.layout.StatusPath(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record, nil
		}
		return record, fmt.Errorf("read status file: %w", err)
	}

	if err := json.Unmarshal(data, &record); err != nil {
		return entity.DefaultStatus(), fmt.Errorf("unmarshal status file: %w", err)
	}
	return record, nil
}
