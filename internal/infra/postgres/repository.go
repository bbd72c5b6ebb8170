package postgres

import (
	"context"
	"fmt"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *entity.Session) error {
	query := `
		INSERT INTO frame_sessions (
			id, status, target_fps, total_frames, processed_frames, frame_count,
			video_size, video_checksum, archive_key, attempt, max_attempts,
			error_kind, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, string(s.Status), s.TargetFPS, s.TotalFrames, s.ProcessedFrames, s.FrameCount,
		s.VideoSize, s.VideoChecksum, s.ArchiveKey, s.Attempt, s.MaxAttempts,
		string(s.ErrorKind), s.ErrorMessage, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, s *entity.Session) error {
	query := `
		UPDATE frame_sessions SET
			status=$2, target_fps=$3, total_frames=$4, processed_frames=$5, frame_count=$6,
			video_size=$7, video_checksum=$8, archive_key=$9, attempt=$10,
			error_kind=$11, error_message=$12, updated_at=$13, completed_at=$14
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		s.ID, string(s.Status), s.TargetFPS, s.TotalFrames, s.ProcessedFrames, s.FrameCount,
		s.VideoSize, s.VideoChecksum, s.ArchiveKey, s.Attempt,
		string(s.ErrorKind), s.ErrorMessage, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session: %s not found", s.ID)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	query := `
		SELECT id, status, target_fps, total_frames, processed_frames, frame_count,
			video_size, video_checksum, archive_key, attempt, max_attempts,
			error_kind, error_message, created_at, updated_at, completed_at
		FROM frame_sessions WHERE id=$1`

	s := &entity.Session{}
	var status, errorKind string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &status, &s.TargetFPS, &s.TotalFrames, &s.ProcessedFrames, &s.FrameCount,
		&s.VideoSize, &s.VideoChecksum, &s.ArchiveKey, &s.Attempt, &s.MaxAttempts,
		&errorKind, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	s.Status = entity.SessionStatus(status)
	s.ErrorKind = entity.ErrorKind(errorKind)
	return s, nil
}
