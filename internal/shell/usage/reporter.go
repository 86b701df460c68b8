package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/orgshift/orgshift/internal/shell/store"
)

// =============================================================================
// Background Reporter
// =============================================================================

// Reporter delivers locally stored usage events to the analytics endpoint.
// Events stay in the store until a send succeeds, so delivery survives
// restarts and analytics outages; the store is the queue, the reporter only
// drains it.
type Reporter struct {
	store     store.Store
	client    Client
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}

	// failures counts consecutive failed flushes so a long analytics outage
	// does not produce one error log line per tick.
	failures int
}

// ReporterConfig holds configuration for the background reporter.
type ReporterConfig struct {
	Store     store.Store
	Client    Client
	Interval  time.Duration
	BatchSize int
	Logger    *slog.Logger
}

// NewReporter creates a new background reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Reporter{
		store:     cfg.Store,
		client:    cfg.Client,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With("component", "usage_reporter"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the delivery loop until Stop is called or the context is
// cancelled. The backlog is drained once on startup, then once per interval.
func (r *Reporter) Start(ctx context.Context) {
	r.logger.Info("usage reporter started",
		"interval", r.interval,
		"batch_size", r.batchSize,
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("usage reporter stopped", "reason", "context cancelled")
			return
		case <-r.stopCh:
			// Last chance to hand off what is already queued.
			r.drain(ctx)
			r.logger.Info("usage reporter stopped", "reason", "shutdown")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// Stop signals the reporter to stop and waits for its final drain.
func (r *Reporter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// ReportNow flushes a single batch immediately (useful for testing and
// shutdown hooks).
func (r *Reporter) ReportNow(ctx context.Context) {
	if _, err := r.flush(ctx); err != nil {
		r.logger.Error("usage report failed", "error", err)
	}
}

// drain flushes batches until the backlog is empty or a flush fails. A full
// batch means more events are probably waiting, so it keeps going rather
// than leaving the rest for the next tick.
func (r *Reporter) drain(ctx context.Context) {
	for {
		n, err := r.flush(ctx)
		if err != nil {
			r.failures++
			if r.failures == 1 || r.failures%10 == 0 {
				r.logger.Error("usage reporting failing",
					"error", err,
					"consecutive_failures", r.failures,
				)
			}
			return
		}
		if r.failures > 0 {
			r.logger.Info("usage reporting recovered", "after_failures", r.failures)
			r.failures = 0
		}
		if n < r.batchSize {
			return
		}
	}
}

// flush sends at most one batch of unreported events and marks them
// reported. Returns how many events were delivered. A failed send leaves the
// batch in the store for retry; a failed mark is surfaced too, since
// retrying it immediately would re-send the same events.
func (r *Reporter) flush(ctx context.Context) (int, error) {
	events, err := r.store.GetUnreportedEvents(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := r.client.SendBatch(ctx, events); err != nil {
		return 0, err
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := r.store.MarkEventsReported(ctx, ids, time.Now()); err != nil {
		r.logger.Warn("delivered events could not be marked reported, duplicates possible",
			"count", len(ids),
		)
		return len(events), err
	}

	r.logger.Debug("usage batch delivered", "count", len(events))
	return len(events), nil
}
