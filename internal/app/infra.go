// Package app wires configuration into the adapters and use cases shared by
// the server, worker and CLI binaries.
package app

import (
	"context"
	"fmt"

	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/infra/config"
	"github.com/framelab/frame-extraction-service/internal/infra/email"
	"github.com/framelab/frame-extraction-service/internal/infra/memory"
	miniostorage "github.com/framelab/frame-extraction-service/internal/infra/minio"
	"github.com/framelab/frame-extraction-service/internal/infra/noop"
	"github.com/framelab/frame-extraction-service/internal/infra/postgres"
	"github.com/framelab/frame-extraction-service/internal/infra/rabbitmq"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Infra holds the optional external collaborators. Disabled ones are
// replaced by in-memory or no-op adapters; Extractions and Archive stay nil.
type Infra struct {
	Repo        port.SessionRepository
	Archive     port.ArchiveStorage
	Status      port.StatusPublisher
	DLQ         port.DLQPublisher
	Notifier    port.FailureNotifier
	Extractions port.ExtractionDispatcher

	closers []func()
}

func Topology(cfg *config.Config) rabbitmq.Topology {
	return rabbitmq.Topology{
		Exchange:     cfg.RabbitMQExchange,
		ExtractQueue: cfg.RabbitMQExtractQueue,
		StatusQueue:  cfg.RabbitMQStatusQueue,
		DLQ:          cfg.RabbitMQDLQ,
	}
}

// Connect opens every collaborator enabled in cfg. On error, whatever was
// already opened is closed again.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *Infra, err error) {
	infra := &Infra{}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	if cfg.DatabaseEnabled {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		infra.closers = append(infra.closers, pool.Close)

		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		infra.Repo = postgres.NewSessionRepository(pool)
		log.Info("session index backed by postgres")
	} else {
		infra.Repo = memory.NewSessionRepository()
	}

	if cfg.ArchiveEnabled {
		storage, err := miniostorage.NewArchiveStorage(miniostorage.StorageConfig{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			UseSSL:        cfg.MinIOUseSSL,
			ArchiveBucket: cfg.MinIOArchiveBucket,
		})
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure minio bucket: %w", err)
		}
		infra.Archive = storage
	}

	if cfg.RabbitMQEnabled {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq for publisher: %w", err)
		}
		infra.closers = append(infra.closers, func() { conn.Close() })

		pub, err := rabbitmq.NewPublisher(conn, Topology(cfg))
		if err != nil {
			return nil, fmt.Errorf("create rabbitmq publisher: %w", err)
		}
		infra.Status = rabbitmq.NewStatusPublisher(pub)
		infra.DLQ = rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)
		infra.Extractions = rabbitmq.NewExtractionPublisher(pub)
	} else {
		p := noop.NewPublisher(log)
		infra.Status = p
		infra.DLQ = p
	}

	if cfg.NotifyEnabled {
		infra.Notifier = email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	} else {
		infra.Notifier = noop.NewNotifier(log)
	}

	return infra, nil
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}
