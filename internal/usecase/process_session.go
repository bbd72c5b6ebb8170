package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type ProcessSessionConfig struct {
	TempDir        string
	MaxRetries     int
	ArchiveEnabled bool
	NotifyTo       string
}

// ExtractionResult is the outcome of one extraction attempt.
type ExtractionResult struct {
	SessionID  string
	Frames     []string
	Status     entity.StatusRecord
	ArchiveKey string
	// Retryable is set when a failed attempt may be delivered again.
	Retryable bool
}

type ProcessSessionUseCase struct {
	store     port.SessionStore
	sampler   *FrameSampler
	catalog   *FrameCatalog
	repo      port.SessionRepository
	zipper    port.Zipper
	archive   port.ArchiveStorage
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ProcessSessionConfig

	inflight sync.Map
}

func NewProcessSessionUseCase(
	store port.SessionStore,
	sampler *FrameSampler,
	catalog *FrameCatalog,
	repo port.SessionRepository,
	zipper port.Zipper,
	archive port.ArchiveStorage,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessSessionConfig,
) *ProcessSessionUseCase {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &ProcessSessionUseCase{
		store:     store,
		sampler:   sampler,
		catalog:   catalog,
		repo:      repo,
		zipper:    zipper,
		archive:   archive,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Execute handles one raw extraction request from the queue. A nil return
// acknowledges the delivery; an error asks for it to be redelivered. A run
// cut short by cancellation of ctx (worker shutdown) is handed back without
// being recorded as a failure; a per-message deadline is a failure.
func (uc *ProcessSessionUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	var req entity.ExtractionRequest
	if err := json.Unmarshal(rawMsg, &req); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.ExtractionsTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	res, err := uc.run(ctx, req, true)
	if err == nil {
		return nil
	}
	if res != nil && res.Retryable {
		return fmt.Errorf("retryable failure for session %s: %w", req.SessionID, err)
	}
	if interrupted(ctx) {
		return fmt.Errorf("extraction of session %s interrupted: %w", req.SessionID, err)
	}

	if dlqErr := uc.dlq.PublishToDLQ(ctx, rawMsg, err.Error()); dlqErr != nil {
		uc.logger.Error("failed to publish to DLQ", zap.String("session_id", req.SessionID), zap.Error(dlqErr))
	}
	metrics.ExtractionsTotal.WithLabelValues("dlq").Inc()
	return nil
}

// Run samples the session's stored video and reports the outcome to the
// session index and the status channel. The returned result is nil only when
// the request could not be tied to a session.
func (uc *ProcessSessionUseCase) Run(ctx context.Context, req entity.ExtractionRequest) (*ExtractionResult, error) {
	return uc.run(ctx, req, false)
}

// interrupted reports whether ctx was canceled rather than timed out.
func interrupted(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func (uc *ProcessSessionUseCase) run(ctx context.Context, req entity.ExtractionRequest, requeueOnCancel bool) (*ExtractionResult, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessSessionUseCase.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.Int("session.target_fps", req.TargetFPS),
	)

	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, entity.Errorf(entity.KindValidation, "invalid session id %q", req.SessionID)
	}
	if req.TargetFPS <= 0 {
		return nil, entity.Errorf(entity.KindValidation, "target fps must be a positive integer, got %d", req.TargetFPS)
	}
	if !uc.store.Exists(req.SessionID) {
		return nil, entity.Errorf(entity.KindNotFound, "session %s not found", req.SessionID)
	}

	if _, busy := uc.inflight.LoadOrStore(req.SessionID, struct{}{}); busy {
		return nil, entity.Errorf(entity.KindConflict, "session %s is already being extracted", req.SessionID)
	}
	defer uc.inflight.Delete(req.SessionID)

	log := uc.logger.With(zap.String("session_id", req.SessionID), zap.Int("target_fps", req.TargetFPS))
	totalTimer := time.Now()

	session, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		session = entity.NewSession(id, req.TargetFPS, uc.cfg.MaxRetries)
		if err := uc.repo.Create(ctx, session); err != nil {
			log.Error("failed to create session record", zap.Error(err))
			return nil, fmt.Errorf("create session record: %w", err)
		}
	}
	session.TargetFPS = req.TargetFPS
	if req.VideoSize > 0 {
		session.VideoSize = req.VideoSize
		session.VideoChecksum = req.VideoChecksum
	}

	if !session.CanRetry() {
		log.Warn("session exhausted retries")
		exhausted := entity.Errorf(entity.KindInternal, "session %s exhausted %d attempts", req.SessionID, session.MaxAttempts)
		return uc.handleFailure(ctx, session, req, exhausted, log), exhausted
	}

	session.MarkProcessing()
	if err := uc.repo.Update(ctx, session); err != nil {
		log.Error("failed to update session to processing", zap.Error(err))
		return nil, fmt.Errorf("update session: %w", err)
	}

	metrics.ActiveExtractions.Inc()
	defer metrics.ActiveExtractions.Dec()

	sampleStart := time.Now()
	sampleCtx, spanSample := tracer.Start(ctx, "sample_frames")
	frames, err := uc.sampler.Extract(sampleCtx, req.SessionID, req.TargetFPS)
	if err != nil {
		spanSample.RecordError(err)
		spanSample.SetStatus(codes.Error, err.Error())
		spanSample.End()
		span.RecordError(err)
		if requeueOnCancel && interrupted(ctx) && errors.Is(err, context.Canceled) {
			return uc.handleInterrupt(ctx, session, req, log), err
		}
		return uc.handleFailure(ctx, session, req, err, log), err
	}
	spanSample.End()
	metrics.ExtractionDuration.WithLabelValues("sample").Observe(time.Since(sampleStart).Seconds())

	record, err := uc.store.ReadStatus(req.SessionID)
	if err != nil {
		return uc.handleFailure(ctx, session, req, err, log), err
	}

	archiveKey := uc.archiveFrames(ctx, req.SessionID, log)

	session.MarkDone(record, len(frames), archiveKey)
	if err := uc.repo.Update(ctx, session); err != nil {
		log.Error("failed to update session to done", zap.Error(err))
	}

	uc.publishStatus(ctx, session, frames, log)

	metrics.ExtractionsTotal.WithLabelValues(string(entity.SessionStatusDone)).Inc()
	metrics.ExtractionDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	log.Info("extraction completed",
		zap.Int("frame_count", len(frames)),
		zap.Int("total_frames", record.TotalFrames),
		zap.String("archive_key", archiveKey),
	)

	return &ExtractionResult{
		SessionID:  req.SessionID,
		Frames:     frames,
		Status:     record,
		ArchiveKey: archiveKey,
	}, nil
}

// handleFailure records a failed attempt. The status record is only written
// here when the sampler did not get far enough to write it itself.
func (uc *ProcessSessionUseCase) handleFailure(
	ctx context.Context,
	session *entity.Session,
	req entity.ExtractionRequest,
	cause error,
	log *zap.Logger,
) *ExtractionResult {
	record, err := uc.store.ReadStatus(req.SessionID)
	if err != nil {
		record = entity.DefaultStatus()
	}
	if record.Status != entity.SessionStatusFailed || record.ErrorMessage != cause.Error() {
		record = entity.FailedStatus(record.TotalFrames, record.ProcessedFrames, cause)
		if err := uc.store.WriteStatus(req.SessionID, record); err != nil {
			log.Error("failed to record failed status", zap.Error(err))
		}
	}

	session.MarkFailed(record, cause)
	if err := uc.repo.Update(ctx, session); err != nil {
		log.Error("failed to update session to failed", zap.Error(err))
	}

	retryable := !entity.IsPermanent(cause) && session.CanRetry()
	uc.publishStatus(ctx, session, nil, log)

	if retryable {
		metrics.RetryTotal.WithLabelValues(strconv.Itoa(session.Attempt)).Inc()
		log.Warn("extraction failed, will retry",
			zap.Int("attempt", session.Attempt),
			zap.Int("max_attempts", session.MaxAttempts),
			zap.Error(cause),
		)
	} else {
		metrics.ExtractionsTotal.WithLabelValues(string(entity.SessionStatusFailed)).Inc()
		log.Error("extraction failed", zap.String("error_kind", string(entity.KindOf(cause))), zap.Error(cause))
		uc.notifyFailure(ctx, req, cause, log)
	}

	return &ExtractionResult{
		SessionID: req.SessionID,
		Status:    record,
		Retryable: retryable,
	}
}

// handleInterrupt puts a session whose run was stopped by shutdown back to
// pending so the redelivered request starts it over.
func (uc *ProcessSessionUseCase) handleInterrupt(
	ctx context.Context,
	session *entity.Session,
	req entity.ExtractionRequest,
	log *zap.Logger,
) *ExtractionResult {
	record, err := uc.store.ReadStatus(req.SessionID)
	if err != nil {
		record = entity.DefaultStatus()
	}
	record = entity.StatusRecord{
		Status:          entity.SessionStatusPending,
		TotalFrames:     record.TotalFrames,
		ProcessedFrames: record.ProcessedFrames,
	}
	if err := uc.store.WriteStatus(req.SessionID, record); err != nil {
		log.Error("failed to reset interrupted status", zap.Error(err))
	}

	session.MarkInterrupted()
	if err := uc.repo.Update(context.WithoutCancel(ctx), session); err != nil {
		log.Error("failed to reset interrupted session", zap.Error(err))
	}

	log.Warn("extraction interrupted, handing request back",
		zap.Int("processed_frames", record.ProcessedFrames),
	)
	return &ExtractionResult{
		SessionID: req.SessionID,
		Status:    record,
		Retryable: true,
	}
}

// archiveFrames zips the session's frames and uploads them. Archive problems
// are logged and leave the key empty; the frames themselves stay served.
func (uc *ProcessSessionUseCase) archiveFrames(ctx context.Context, sessionID string, log *zap.Logger) string {
	if !uc.cfg.ArchiveEnabled || uc.archive == nil {
		return ""
	}

	tracer := otel.Tracer("usecase")
	start := time.Now()

	paths, err := uc.catalog.Paths(sessionID)
	if err != nil || len(paths) == 0 {
		if err != nil {
			log.Error("failed to list frames for archive", zap.Error(err))
		}
		return ""
	}

	workDir := filepath.Join(uc.cfg.TempDir, sessionID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		log.Error("failed to create archive workdir", zap.Error(err))
		return ""
	}
	defer os.RemoveAll(workDir)

	zipCtx, spanZip := tracer.Start(ctx, "create_zip")
	zipPath := filepath.Join(workDir, "frames.zip")
	if err := uc.zipper.CreateZip(zipCtx, paths, zipPath); err != nil {
		spanZip.End()
		log.Error("zip creation failed", zap.Error(err))
		return ""
	}
	spanZip.End()

	upCtx, spanUp := tracer.Start(ctx, "upload_zip")
	defer spanUp.End()

	zipFile, err := os.Open(zipPath)
	if err != nil {
		log.Error("failed to open zip", zap.Error(err))
		return ""
	}
	defer zipFile.Close()

	stat, err := zipFile.Stat()
	if err != nil {
		log.Error("failed to stat zip", zap.Error(err))
		return ""
	}

	key := fmt.Sprintf("%s/frames.zip", sessionID)
	if err := uc.archive.UploadArchive(upCtx, key, zipFile, stat.Size()); err != nil {
		log.Error("zip upload failed", zap.Error(err))
		return ""
	}

	metrics.ExtractionDuration.WithLabelValues("archive").Observe(time.Since(start).Seconds())
	return key
}

func (uc *ProcessSessionUseCase) notifyFailure(ctx context.Context, req entity.ExtractionRequest, cause error, log *zap.Logger) {
	recipient := req.NotifyEmail
	if recipient == "" {
		recipient = uc.cfg.NotifyTo
	}
	if recipient == "" {
		return
	}
	if err := uc.notifier.NotifyFailure(ctx, recipient, req.SessionID, cause.Error()); err != nil {
		log.Error("failed to send failure notification", zap.Error(err))
	}
}

func (uc *ProcessSessionUseCase) publishStatus(ctx context.Context, session *entity.Session, frames []string, log *zap.Logger) {
	statusMsg := entity.SessionStatusMessage{
		SessionID:       session.ID.String(),
		Status:          session.Status,
		TargetFPS:       session.TargetFPS,
		TotalFrames:     session.TotalFrames,
		ProcessedFrames: session.ProcessedFrames,
		FrameCount:      session.FrameCount,
		Frames:          frames,
		ArchiveKey:      session.ArchiveKey,
		ErrorKind:       session.ErrorKind,
		ErrorMessage:    session.ErrorMessage,
		Attempt:         session.Attempt,
		MaxAttempts:     session.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
