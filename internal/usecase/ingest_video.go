package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/infra/filesystem"
	"github.com/framelab/frame-extraction-service/internal/infra/metrics"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type IngestConfig struct {
	MaxBytes            int64
	ChunkSize           int
	AllowedExtensions   []string
	AllowedContentTypes []string
}

// VideoIngestor streams an upload into a session's source-video slot.
type VideoIngestor struct {
	layout    filesystem.Layout
	cfg       IngestConfig
	exts      map[string]bool
	mimeTypes map[string]bool
}

func NewVideoIngestor(layout filesystem.Layout, cfg IngestConfig) *VideoIngestor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 512 << 20
	}
	v := &VideoIngestor{
		layout:    layout,
		cfg:       cfg,
		exts:      make(map[string]bool),
		mimeTypes: make(map[string]bool),
	}
	for _, ext := range cfg.AllowedExtensions {
		v.exts[strings.ToLower(strings.TrimSpace(ext))] = true
	}
	for _, ct := range cfg.AllowedContentTypes {
		v.mimeTypes[strings.ToLower(strings.TrimSpace(ct))] = true
	}
	return v
}

// Validate checks the declared file name and content type against the allow-lists.
func (v *VideoIngestor) Validate(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !v.exts[ext] {
		return entity.Errorf(entity.KindValidation, "unsupported video extension %q", ext)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !v.mimeTypes[strings.ToLower(mediaType)] {
		return entity.Errorf(entity.KindValidation, "unsupported content type %q", contentType)
	}
	return nil
}

// Store validates the declared name and type, then copies src chunk by chunk
// into the session's source video. The destination is only replaced once the
// whole stream has been written; on any failure nothing is left behind.
func (v *VideoIngestor) Store(ctx context.Context, src io.Reader, filename, contentType, sessionID string) (*entity.SourceVideo, error) {
	if err := v.Validate(filename, contentType); err != nil {
		return nil, err
	}

	dir := v.layout.VideoDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create video dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "upload-*.part")
	if err != nil {
		return nil, fmt.Errorf("create upload temp file: %w", err)
	}
	tmpPath := tmp.Name()

	size, checksum, err := v.copyLimited(ctx, tmp, src)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close upload: %w", closeErr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	destination := v.layout.VideoPath(sessionID)
	if err := os.Rename(tmpPath, destination); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("persist upload: %w", err)
	}

	return &entity.SourceVideo{
		SessionID:    sessionID,
		Path:         destination,
		OriginalName: filename,
		ContentType:  contentType,
		Size:         size,
		Checksum:     checksum,
	}, nil
}

func (v *VideoIngestor) copyLimited(ctx context.Context, dst io.Writer, src io.Reader) (int64, string, error) {
	buf := make([]byte, v.cfg.ChunkSize)
	hasher := blake3.New()
	var size int64

	for {
		if err := ctx.Err(); err != nil {
			return size, "", entity.NewError(entity.KindCanceled, "upload canceled", err)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			size += int64(n)
			if size > v.cfg.MaxBytes {
				return size, "", entity.Errorf(entity.KindSizeLimit, "video exceeds the %d byte limit", v.cfg.MaxBytes)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return size, "", fmt.Errorf("write upload: %w", err)
			}
			hasher.Write(buf[:n])
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return size, "", fmt.Errorf("read upload: %w", readErr)
		}
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// IngestVideoUseCase creates sessions and stores their uploads.
type IngestVideoUseCase struct {
	store    port.SessionStore
	ingestor *VideoIngestor
	logger   *zap.Logger
}

func NewIngestVideoUseCase(store port.SessionStore, ingestor *VideoIngestor, logger *zap.Logger) *IngestVideoUseCase {
	return &IngestVideoUseCase{store: store, ingestor: ingestor, logger: logger}
}

func (uc *IngestVideoUseCase) CreateSession() (string, error) {
	sessionID, err := uc.store.Create()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsCreatedTotal.Inc()
	uc.logger.Info("session created", zap.String("session_id", sessionID))
	return sessionID, nil
}

// CheckUpload rejects an upload before a session is created for it.
func (uc *IngestVideoUseCase) CheckUpload(filename, contentType string) error {
	return uc.ingestor.Validate(filename, contentType)
}

func (uc *IngestVideoUseCase) StoreVideo(ctx context.Context, src io.Reader, filename, contentType, sessionID string) (*entity.SourceVideo, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "IngestVideoUseCase.StoreVideo")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("video.filename", filename))

	log := uc.logger.With(zap.String("session_id", sessionID), zap.String("filename", filename))

	video, err := uc.ingestor.Store(ctx, src, filename, contentType, sessionID)
	if err != nil {
		span.RecordError(err)
		metrics.UploadsTotal.WithLabelValues(string(entity.KindOf(err))).Inc()
		log.Warn("video rejected", zap.String("content_type", contentType), zap.Error(err))
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	metrics.UploadBytesTotal.Add(float64(video.Size))
	span.SetAttributes(attribute.Int64("video.size", video.Size))
	log.Info("video stored", zap.Int64("size", video.Size), zap.String("checksum", video.Checksum))
	return video, nil
}
