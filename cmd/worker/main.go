package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framelab/frame-extraction-service/internal/app"
	"github.com/framelab/frame-extraction-service/internal/infra/config"
	"github.com/framelab/frame-extraction-service/internal/infra/metrics"
	"github.com/framelab/frame-extraction-service/internal/infra/rabbitmq"
	"github.com/framelab/frame-extraction-service/internal/infra/tracing"
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

	if !cfg.RabbitMQEnabled {
		fatalOnErr(errNoQueue, "start worker")
	}

	log.Info("starting frame-extraction-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, tracing.Options{
			ServiceName:    "frame-extraction-worker",
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

	infra, err := app.Connect(ctx, cfg, log)
	fatalOnErr(err, "connect infrastructure")
	defer infra.Close()

	pipeline := app.NewPipeline(cfg, infra, log)
	fatalOnErr(pipeline.Decoder.CheckInstallation(), "check ffmpeg")

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, map[string]metrics.Check{
		"ffmpeg": pipeline.Decoder.CheckInstallation,
	}, log)

	handle := func(ctx context.Context, body []byte) error {
		if cfg.ExtractionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ExtractionTimeout)
			defer cancel()
		}
		return pipeline.Process.Execute(ctx, body)
	}

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Topology:    app.Topology(cfg),
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, handle, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("frame-extraction-worker started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("frame-extraction-worker stopped")
}

var errNoQueue = errors.New("RABBITMQ_ENABLED must be set for the worker")

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
