package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/infra/filesystem"
	"github.com/framelab/frame-extraction-service/internal/infra/metrics"
	"go.uber.org/zap"
)

type SamplerConfig struct {
	// CheckpointEvery is the number of raw frames scanned between progress writes.
	CheckpointEvery int
	// MaxFrames caps the sampled frames of one session.
	MaxFrames int
}

// FrameSampler turns a session's source video into a dense sequence of
// still images at a requested rate.
type FrameSampler struct {
	layout  filesystem.Layout
	store   port.SessionStore
	decoder port.VideoDecoder
	writer  port.FrameWriter
	cfg     SamplerConfig
	logger  *zap.Logger
}

func NewFrameSampler(
	layout filesystem.Layout,
	store port.SessionStore,
	decoder port.VideoDecoder,
	writer port.FrameWriter,
	cfg SamplerConfig,
	logger *zap.Logger,
) *FrameSampler {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 50
	}
	if cfg.MaxFrames <= 0 || cfg.MaxFrames > filesystem.MaxFrames {
		cfg.MaxFrames = filesystem.MaxFrames
	}
	return &FrameSampler{
		layout:  layout,
		store:   store,
		decoder: decoder,
		writer:  writer,
		cfg:     cfg,
		logger:  logger,
	}
}

// SamplingInterval is the number of raw frames advanced per retained frame.
// Ratios ending in .5 round half to even: 25/10 gives 2, 15/2 gives 8.
func SamplingInterval(sourceFPS float64, targetFPS int) int {
	if sourceFPS <= 0 || math.IsNaN(sourceFPS) || math.IsInf(sourceFPS, 0) || targetFPS <= 0 {
		return 1
	}
	interval := int(math.RoundToEven(sourceFPS / float64(targetFPS)))
	if interval < 1 {
		return 1
	}
	return interval
}

// Extract samples the session's source video at targetFPS and returns the
// written frame names in ordinal order. Progress is checkpointed to the
// session store; a run that fails after it started leaves a failed record and
// keeps the frames already written.
func (s *FrameSampler) Extract(ctx context.Context, sessionID string, targetFPS int) ([]string, error) {
	if targetFPS <= 0 {
		return nil, entity.Errorf(entity.KindValidation, "target fps must be a positive integer, got %d", targetFPS)
	}

	videoPath := s.layout.VideoPath(sessionID)
	if _, err := os.Stat(videoPath); err != nil {
		if os.IsNotExist(err) {
			return nil, entity.Errorf(entity.KindNotFound, "source video for session %s not found", sessionID)
		}
		return nil, fmt.Errorf("stat source video: %w", err)
	}

	framesDir := s.layout.FramesDir(sessionID)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	stream, err := s.decoder.Open(ctx, videoPath)
	if err != nil {
		if entity.KindOf(err) == entity.KindInternal {
			err = entity.NewError(entity.KindDecode, "cannot open video", err)
		}
		return nil, err
	}

	info := stream.Info()
	total := info.FrameCount
	interval := SamplingInterval(info.FPS, targetFPS)

	log := s.logger.With(zap.String("session_id", sessionID))
	log.Info("frame sampling started",
		zap.Int("total_frames", total),
		zap.Float64("source_fps", info.FPS),
		zap.Int("target_fps", targetFPS),
		zap.Int("interval", interval),
	)

	if err := s.store.WriteStatus(sessionID, entity.ProcessingStatus(total, 0)); err != nil {
		stream.Close()
		return nil, fmt.Errorf("write processing status: %w", err)
	}

	saved, scanned, runErr := s.sample(ctx, sessionID, stream, interval, total)
	closeErr := stream.Close()
	if runErr == nil && closeErr != nil {
		runErr = entity.NewError(entity.KindDecode, "release decoder", closeErr)
	}

	if runErr != nil {
		log.Error("frame sampling failed",
			zap.Int("processed_frames", scanned),
			zap.Int("saved_frames", len(saved)),
			zap.Error(runErr),
		)
		if err := s.store.WriteStatus(sessionID, entity.FailedStatus(total, scanned, runErr)); err != nil {
			log.Error("failed to record failed status", zap.Error(err))
		}
		return saved, runErr
	}

	if err := s.store.WriteStatus(sessionID, entity.DoneStatus(total, scanned)); err != nil {
		return saved, fmt.Errorf("write done status: %w", err)
	}

	log.Info("frame sampling finished", zap.Int("processed_frames", scanned), zap.Int("saved_frames", len(saved)))
	return saved, nil
}

func (s *FrameSampler) sample(ctx context.Context, sessionID string, stream port.VideoStream, interval, total int) ([]string, int, error) {
	saved := make([]string, 0)
	scanned := 0

	for {
		if err := ctx.Err(); err != nil {
			return saved, scanned, entity.NewError(entity.KindCanceled, "extraction canceled", err)
		}

		frame, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return saved, scanned, nil
		}
		if err != nil {
			if entity.KindOf(err) == entity.KindInternal {
				err = entity.NewError(entity.KindDecode, "decode frame", err)
			}
			return saved, scanned, err
		}

		if scanned%interval == 0 {
			if len(saved) >= s.cfg.MaxFrames {
				return saved, scanned, entity.Errorf(entity.KindSizeLimit, "session exceeds %d sampled frames", s.cfg.MaxFrames)
			}
			name := s.layout.FrameName(len(saved) + 1)
			if err := s.writer.WriteFrame(s.layout.FramePath(sessionID, name), frame); err != nil {
				return saved, scanned, fmt.Errorf("write frame %s: %w", name, err)
			}
			saved = append(saved, name)
			metrics.FramesSampledTotal.Inc()
		}

		scanned++
		metrics.RawFramesScannedTotal.Inc()

		if scanned%s.cfg.CheckpointEvery == 0 {
			if err := s.store.WriteStatus(sessionID, entity.ProcessingStatus(total, scanned)); err != nil {
				return saved, scanned, fmt.Errorf("checkpoint status: %w", err)
			}
		}
	}
}
