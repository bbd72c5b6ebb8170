package app

import (
	"github.com/framelab/frame-extraction-service/internal/infra/config"
	"github.com/framelab/frame-extraction-service/internal/infra/ffmpeg"
	"github.com/framelab/frame-extraction-service/internal/infra/filesystem"
	"github.com/framelab/frame-extraction-service/internal/infra/imaging"
	"github.com/framelab/frame-extraction-service/internal/usecase"
	"go.uber.org/zap"
)

// Pipeline is the ingestion and sampling core built from one configuration.
type Pipeline struct {
	Layout  filesystem.Layout
	Store   *filesystem.SessionStore
	Decoder *ffmpeg.Decoder
	Zipper  *ffmpeg.ZipCreator
	Ingest  *usecase.IngestVideoUseCase
	Sampler *usecase.FrameSampler
	Catalog *usecase.FrameCatalog
	Process *usecase.ProcessSessionUseCase
}

func NewPipeline(cfg *config.Config, infra *Infra, log *zap.Logger) *Pipeline {
	layout := filesystem.NewLayout(cfg.DataRoot, cfg.FramePrefix)
	store := filesystem.NewSessionStore(layout)
	decoder := ffmpeg.NewDecoder(cfg.FFmpegBin, cfg.FFprobeBin, log)
	zipper := ffmpeg.NewZipCreator()

	ingestor := usecase.NewVideoIngestor(layout, usecase.IngestConfig{
		MaxBytes:            cfg.MaxUploadBytes,
		ChunkSize:           cfg.UploadChunkBytes,
		AllowedExtensions:   cfg.AllowedExtensions,
		AllowedContentTypes: cfg.AllowedContentTypes,
	})

	sampler := usecase.NewFrameSampler(
		layout,
		store,
		decoder,
		imaging.NewJPEGWriter(cfg.FrameWidth, cfg.FrameHeight, cfg.JPEGQuality),
		usecase.SamplerConfig{CheckpointEvery: cfg.CheckpointEvery, MaxFrames: filesystem.MaxFrames},
		log,
	)
	catalog := usecase.NewFrameCatalog(layout)

	process := usecase.NewProcessSessionUseCase(
		store,
		sampler,
		catalog,
		infra.Repo,
		zipper,
		infra.Archive,
		infra.Status,
		infra.DLQ,
		infra.Notifier,
		log,
		usecase.ProcessSessionConfig{
			TempDir:        cfg.TempDir,
			MaxRetries:     cfg.MaxRetries,
			ArchiveEnabled: cfg.ArchiveEnabled,
			NotifyTo:       cfg.NotificationTo,
		},
	)

	return &Pipeline{
		Layout:  layout,
		Store:   store,
		Decoder: decoder,
		Zipper:  zipper,
		Ingest:  usecase.NewIngestVideoUseCase(store, ingestor, log),
		Sampler: sampler,
		Catalog: catalog,
		Process: process,
	}
}
