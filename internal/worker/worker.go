package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"civic-reporting-api/internal/features"
	"civic-reporting-api/internal/logger"
	"civic-reporting-api/internal/tracing"
)

// JobProcessor retries queued classification jobs.
type JobProcessor interface {
	ProcessPending(ctx context.Context, limit int) (processed, failed int, err error)
}

// Worker periodically drains pending jobs in batches.
type Worker struct {
	jobs      JobProcessor
	flags     *features.Manager
	interval  time.Duration
	batchSize int
	log       *logrus.Logger
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

func New(jobs JobProcessor, flags *features.Manager, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Worker{
		jobs:      jobs,
		flags:     flags,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		log:       logger.Get("worker"),
	}
}

// Start runs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).WithField("batch_size", w.batchSize).Info("job worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("job worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch. It is skipped while the job worker flag is
// off, and a panic inside a batch is logged instead of stopping the loop.
func (w *Worker) RunOnce(ctx context.Context) (processed, failed int, err error) {
	if w.flags != nil && !w.flags.IsEnabled(features.JobWorkerEnabled) {
		return 0, 0, nil
	}

	ctx, span := tracing.GetTracer().StartSpan(ctx, "worker.process_pending")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job batch panicked: %v", r)
			span.SetStatus(codes.Error, err.Error())
			w.log.WithField("panic", r).Error("job batch panicked")
		}
	}()

	processed, failed, err = w.jobs.ProcessPending(ctx, w.batchSize)
	span.SetAttributes(
		attribute.Int("jobs.processed", processed),
		attribute.Int("jobs.failed", failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.log.WithError(err).Error("failed to process pending jobs")
		return processed, failed, err
	}
	if processed > 0 || failed > 0 {
		w.log.WithField("processed", processed).WithField("failed", failed).Info("pending jobs processed")
	}
	return processed, failed, nil
}
