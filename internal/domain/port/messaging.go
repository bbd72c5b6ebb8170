package port

import (
	"context"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}

// ExtractionDispatcher schedules extraction outside the request that asked for it.
type ExtractionDispatcher interface {
	Dispatch(ctx context.Context, req entity.ExtractionRequest) error
}
