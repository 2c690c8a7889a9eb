package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"casino-platform/internal/metrics"
	"casino-platform/pkg/logger"
)

var ErrQueueFull = errors.New("audit batch queue is full")

// Job is one deferred audit write.
type Job func(ctx context.Context) error

type BatcherOptions struct {
	Interval      time.Duration
	BatchSize     int
	QueueCapacity int
	Logger        *slog.Logger
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// Batcher defers audit writes off the request path. Jobs run in FIFO order,
// at most BatchSize per tick, concurrently within a batch. A tick that finds
// the previous drain still running does nothing.
type Batcher struct {
	events    EventLogger
	queue     chan queuedJob
	interval  time.Duration
	batchSize int
	log       *slog.Logger

	draining atomic.Bool
	inflight sync.WaitGroup
}

func NewBatcher(events EventLogger, opts BatcherOptions) *Batcher {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.QueueCapacity < opts.BatchSize {
		opts.QueueCapacity = 1000
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Batcher{
		events:    events,
		queue:     make(chan queuedJob, opts.QueueCapacity),
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		log:       opts.Logger,
	}
}

// Enqueue schedules job for the next drain. It never blocks; a full queue
// returns ErrQueueFull. The job runs with ctx's values but not its cancellation.
func (b *Batcher) Enqueue(ctx context.Context, job Job) error {
	select {
	case b.queue <- queuedJob{ctx: context.WithoutCancel(ctx), job: job}:
		metrics.AuditQueueDepth.Set(float64(len(b.queue)))
		return nil
	default:
		metrics.AuditBatchDropped.Inc()
		b.log.Warn("audit write dropped", slog.Int("queue_capacity", cap(b.queue)))
		return ErrQueueFull
	}
}

// EnqueueEvent defers LogEvent(e).
func (b *Batcher) EnqueueEvent(ctx context.Context, e Event) error {
	return b.Enqueue(ctx, func(ctx context.Context) error {
		_, err := b.events.LogEvent(ctx, e)
		return err
	})
}

// Pending is the number of queued jobs.
func (b *Batcher) Pending() int {
	return len(b.queue)
}

// Run drives the drain timer until ctx is done. Call Flush afterwards to
// write what is still queued.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.log.Info("audit batcher started", slog.Duration("interval", b.interval), slog.Int("batch_size", b.batchSize))
	for {
		select {
		case <-ctx.Done():
			b.log.Info("audit batcher stopped", slog.Int("pending", len(b.queue)))
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

// tick starts a drain unless one is running.
func (b *Batcher) tick() {
	if !b.draining.CompareAndSwap(false, true) {
		metrics.AuditBatchSkippedTicks.Inc()
		return
	}
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer b.draining.Store(false)
		b.drainBatch()
	}()
}

// Flush waits for any running drain, then drains the queue batch by batch.
func (b *Batcher) Flush(ctx context.Context) error {
	b.inflight.Wait()
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("audit flush: %d writes left: %w", len(b.queue), err)
		}
		if !b.draining.CompareAndSwap(false, true) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		n := b.drainBatch()
		b.draining.Store(false)
		if n == 0 {
			return nil
		}
	}
}

// drainBatch runs up to batchSize queued jobs and waits for all of them.
// A failing job does not stop its siblings.
func (b *Batcher) drainBatch() int {
	batch := make([]queuedJob, 0, b.batchSize)
fill:
	for len(batch) < b.batchSize {
		select {
		case q := <-b.queue:
			batch = append(batch, q)
		default:
			break fill
		}
	}
	metrics.AuditQueueDepth.Set(float64(len(b.queue)))
	if len(batch) == 0 {
		return 0
	}

	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	for _, q := range batch {
		g.Go(func() error {
			if err := q.job(q.ctx); err != nil {
				failed.Add(1)
				metrics.AuditBatchJobs.WithLabelValues("error").Inc()
				return err
			}
			metrics.AuditBatchJobs.WithLabelValues("ok").Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.log.Warn("audit batch finished with failures",
			slog.Int("batch", len(batch)),
			slog.Int("failed", int(failed.Load())),
			slog.Any("err", err),
		)
	}
	return len(batch)
}

// Operation describes an action wrapped by WithAuditLogging.
type Operation struct {
	EventType   EventType
	Action      string
	Description string
	TargetType  string
	TargetID    string
	TargetName  string
	Metadata    map[string]any
}

// WithAuditLogging runs fn and enqueues an audit event describing the
// outcome. fn's result and error are returned unchanged; a rejected audit
// write is only logged. A nil Batcher runs fn without auditing.
func WithAuditLogging[T any](ctx context.Context, b *Batcher, op Operation, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	elapsed := time.Since(start)
	if b == nil {
		return out, err
	}

	meta := make(map[string]any, len(op.Metadata)+2)
	maps.Copy(meta, op.Metadata)
	meta["duration_ms"] = elapsed.Milliseconds()

	e := Event{
		EventType:   op.EventType,
		Action:      op.Action,
		Description: op.Description,
		TargetType:  op.TargetType,
		TargetID:    op.TargetID,
		TargetName:  op.TargetName,
		Metadata:    meta,
	}
	if err != nil {
		e.Severity = SeverityHigh
		e.RiskScore = Score(80)
		e.Status = StatusFailed
		e.Description = fmt.Sprintf("%s failed: %s", op.Description, err.Error())
		meta["error"] = err.Error()
	}

	if qerr := b.EnqueueEvent(ctx, e); qerr != nil {
		logger.From(ctx).Warn("audit event for operation not queued",
			slog.String("action", op.Action),
			slog.Any("err", qerr),
		)
	}
	return out, err
}
