package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"go.uber.org/zap"
)

// Extractor runs one extraction attempt to completion.
type Extractor interface {
	Run(ctx context.Context, req entity.ExtractionRequest) (*ExtractionResult, error)
}

// ensureDispatchable refuses sessions that do not exist or already report a
// run in progress.
func ensureDispatchable(store port.SessionStore, sessionID string) error {
	if !store.Exists(sessionID) {
		return entity.Errorf(entity.KindNotFound, "session %s not found", sessionID)
	}
	record, err := store.ReadStatus(sessionID)
	if err != nil {
		return err
	}
	if record.Status == entity.SessionStatusProcessing {
		return entity.Errorf(entity.KindConflict, "session %s is already processing", sessionID)
	}
	return nil
}

// Runner executes extractions in-process, one goroutine per session.
type Runner struct {
	extractor Extractor
	store     port.SessionStore
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	jobs    map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
}

func NewRunner(extractor Extractor, store port.SessionStore, timeout time.Duration, logger *zap.Logger) *Runner {
	ctx, stop := context.WithCancel(context.Background())
	return &Runner{
		extractor: extractor,
		store:     store,
		timeout:   timeout,
		logger:    logger,
		jobs:      make(map[string]context.CancelFunc),
		baseCtx:   ctx,
		stop:      stop,
	}
}

// Dispatch starts the extraction and returns without waiting for it. The run
// is detached from ctx so that it outlives the request that scheduled it.
func (r *Runner) Dispatch(ctx context.Context, req entity.ExtractionRequest) error {
	if err := ensureDispatchable(r.store, req.SessionID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return entity.Errorf(entity.KindCanceled, "runner is shutting down")
	}
	if _, busy := r.jobs[req.SessionID]; busy {
		return entity.Errorf(entity.KindConflict, "session %s is already being extracted", req.SessionID)
	}

	var (
		jobCtx context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(r.baseCtx, r.timeout)
	} else {
		jobCtx, cancel = context.WithCancel(r.baseCtx)
	}
	r.jobs[req.SessionID] = cancel
	r.wg.Add(1)

	go r.run(jobCtx, cancel, req)
	return nil
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, req entity.ExtractionRequest) {
	defer r.wg.Done()
	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.jobs, req.SessionID)
		r.mu.Unlock()
	}()

	log := r.logger.With(zap.String("session_id", req.SessionID))
	res, err := r.extractor.Run(ctx, req)
	if err != nil {
		log.Warn("background extraction finished with error", zap.Error(err))
		return
	}
	log.Info("background extraction finished", zap.Int("frame_count", len(res.Frames)))
}

// Cancel stops a running extraction. It reports whether one was running.
func (r *Runner) Cancel(sessionID string) bool {
	r.mu.Lock()
	cancel, ok := r.jobs[sessionID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the number of extractions in flight.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Shutdown refuses new work, cancels running extractions and waits for them
// until ctx is done.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GuardedDispatcher checks a session before handing it to another dispatcher,
// typically the extraction queue.
type GuardedDispatcher struct {
	store port.SessionStore
	next  port.ExtractionDispatcher
}

func NewGuardedDispatcher(store port.SessionStore, next port.ExtractionDispatcher) *GuardedDispatcher {
	return &GuardedDispatcher{store: store, next: next}
}

func (d *GuardedDispatcher) Dispatch(ctx context.Context, req entity.ExtractionRequest) error {
	if err := ensureDispatchable(d.store, req.SessionID); err != nil {
		return err
	}
	return d.next.Dispatch(ctx, req)
}
