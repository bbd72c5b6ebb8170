package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framelab/frame-extraction-service/internal/api"
	"github.com/framelab/frame-extraction-service/internal/app"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/infra/config"
	"github.com/framelab/frame-extraction-service/internal/infra/metrics"
	"github.com/framelab/frame-extraction-service/internal/infra/tracing"
	"github.com/framelab/frame-extraction-service/internal/usecase"
	"github.com/framelab/frame-extraction-service/pkg/logger"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting frame-extraction-service", zap.String("dispatch_mode", cfg.DispatchMode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, tracing.Options{
			ServiceName:    "frame-extraction-service",
			ServiceVersion: version,
			Endpoint:       cfg.JaegerEndpoint,
			SampleRatio:    cfg.TracingSampleRatio,
		})
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	fatalOnErr(os.MkdirAll(cfg.DataRoot, 0o755), "create data root")

	infra, err := app.Connect(ctx, cfg, log)
	fatalOnErr(err, "connect infrastructure")
	defer infra.Close()

	pipeline := app.NewPipeline(cfg, infra, log)
	if err := pipeline.Decoder.CheckInstallation(); err != nil {
		log.Warn("ffmpeg not available, extractions will fail", zap.Error(err))
	}

	var (
		dispatcher port.ExtractionDispatcher
		canceller  api.Canceller
		runner     *usecase.Runner
	)
	switch cfg.DispatchMode {
	case config.DispatchQueue:
		dispatcher = usecase.NewGuardedDispatcher(pipeline.Store, infra.Extractions)
	default:
		runner = usecase.NewRunner(pipeline.Process, pipeline.Store, cfg.ExtractionTimeout, log)
		dispatcher = runner
		canceller = runner
	}

	handler := api.NewHandler(api.HandlerDeps{
		Ingest:         pipeline.Ingest,
		Store:          pipeline.Store,
		Catalog:        pipeline.Catalog,
		Dispatcher:     dispatcher,
		Canceller:      canceller,
		Zipper:         pipeline.Zipper,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	})
	server := api.NewHTTPServer(cfg.HTTPAddr, api.SetupRoutes(handler, cfg.CORSOrigins, log))

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, map[string]metrics.Check{
		"ffmpeg":    pipeline.Decoder.CheckInstallation,
		"data_root": func() error { _, err := os.Stat(cfg.DataRoot); return err },
	}, log)

	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}
	if runner != nil {
		if err := runner.Shutdown(shutdownCtx); err != nil {
			log.Error("extractions did not stop in time", zap.Error(err))
		}
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("frame-extraction-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
