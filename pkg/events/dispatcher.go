package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/pkg/jobs"
)

// DispatcherConfig sizes the async delivery pool.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Dispatcher decouples duty mutations from event delivery: Publish enqueues
// onto a worker queue and returns immediately, so a slow or unavailable
// broker never delays a pick or release response.
type Dispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewDispatcher wraps the sink publisher with an async worker queue.
func NewDispatcher(sink Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(DutyEvent)
		if !ok {
			return nil
		}
		return sink.Publish(ctx, event)
	}
	queue := jobs.NewQueue("duty-events", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     cfg.Logger,
	})
	return &Dispatcher{queue: queue, logger: cfg.Logger}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Publish enqueues the event for delivery. A full buffer drops the event;
// delivery is best-effort by contract.
func (d *Dispatcher) Publish(_ context.Context, event DutyEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := d.queue.Enqueue(jobs.Job{Type: string(event.Action), Payload: event}); err != nil {
		d.logger.Warn("duty event dropped", zap.String("action", string(event.Action)), zap.Error(err))
	}
	return nil
}
