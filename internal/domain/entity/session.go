package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusDone       SessionStatus = "done"
	SessionStatusFailed     SessionStatus = "failed"
)

// StatusRecord is the durable, externally readable progress of a session.
type StatusRecord struct {
	Status          SessionStatus `json:"status"`
	TotalFrames     int           `json:"total_frames"`
	ProcessedFrames int           `json:"processed_frames"`
	ErrorKind       ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// DefaultStatus is what a session reports before anything was recorded.
func DefaultStatus() StatusRecord {
	return StatusRecord{Status: SessionStatusPending}
}

func ProcessingStatus(total, processed int) StatusRecord {
	return StatusRecord{Status: SessionStatusProcessing, TotalFrames: total, ProcessedFrames: processed}
}

func DoneStatus(total, processed int) StatusRecord {
	return StatusRecord{Status: SessionStatusDone, TotalFrames: total, ProcessedFrames: processed}
}

func FailedStatus(total, processed int, err error) StatusRecord {
	return StatusRecord{
		Status:          SessionStatusFailed,
		TotalFrames:     total,
		ProcessedFrames: processed,
		ErrorKind:       KindOf(err),
		ErrorMessage:    err.Error(),
	}
}

func (r StatusRecord) IsTerminal() bool {
	return r.Status == SessionStatusDone || r.Status == SessionStatusFailed
}

// SourceVideo describes the stored upload of a session.
type SourceVideo struct {
	SessionID    string
	Path         string
	OriginalName string
	ContentType  string
	Size         int64
	Checksum     string
}

// Session is the indexed record of one upload-through-extraction run.
type Session struct {
	ID              uuid.UUID
	Status          SessionStatus
	TargetFPS       int
	TotalFrames     int
	ProcessedFrames int
	FrameCount      int
	VideoSize       int64
	VideoChecksum   string
	ArchiveKey      string
	Attempt         int
	MaxAttempts     int
	ErrorKind       ErrorKind
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func NewSession(id uuid.UUID, targetFPS int, maxAttempts int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		Status:      SessionStatusPending,
		TargetFPS:   targetFPS,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Session) MarkProcessing() {
	s.Status = SessionStatusProcessing
	s.Attempt++
	s.ErrorKind = ""
	s.ErrorMessage = ""
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) MarkDone(record StatusRecord, frameCount int, archiveKey string) {
	now := time.Now().UTC()
	s.Status = SessionStatusDone
	s.TotalFrames = record.TotalFrames
	s.ProcessedFrames = record.ProcessedFrames
	s.FrameCount = frameCount
	s.ArchiveKey = archiveKey
	s.UpdatedAt = now
	s.CompletedAt = &now
}

func (s *Session) MarkFailed(record StatusRecord, err error) {
	s.Status = SessionStatusFailed
	s.TotalFrames = record.TotalFrames
	s.ProcessedFrames = record.ProcessedFrames
	s.ErrorKind = KindOf(err)
	s.ErrorMessage = err.Error()
	s.UpdatedAt = time.Now().UTC()
}

// MarkInterrupted returns a session whose run was stopped from outside to
// pending. The interrupted attempt is not counted.
func (s *Session) MarkInterrupted() {
	s.Status = SessionStatusPending
	if s.Attempt > 0 {
		s.Attempt--
	}
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) CanRetry() bool {
	return s.Attempt < s.MaxAttempts
}
