package usage

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orgshift/orgshift/internal/core/domain"
	"github.com/orgshift/orgshift/internal/shell/store"
)

// =============================================================================
// Fire-and-Forget Recorder
// =============================================================================

// Recorder accepts usage events from request handlers and persists them from
// a background goroutine. Submission never blocks the caller: when the
// buffer is full the event is dropped with a warning. Every error in this
// path is recovered locally.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
	events chan domain.UsageEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RecorderConfig configures the recorder.
type RecorderConfig struct {
	// BufferSize is the capacity of the event channel. Default: 256.
	BufferSize int
}

// NewRecorder creates a recorder persisting events to the given store.
func NewRecorder(s store.Store, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		logger: logger.With("component", "usage_recorder"),
		events: make(chan domain.UsageEvent, cfg.BufferSize),
	}
}

// Start begins the background persistence goroutine.
func (r *Recorder) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go r.run()

	r.logger.Info("usage recorder started", "buffer", cap(r.events))
}

// Stop drains pending events and stops the recorder.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("usage recorder stopped")
}

// Record submits an event. It never blocks and never returns an error; a
// full buffer drops the event with a warning log.
func (r *Recorder) Record(event domain.UsageEvent) {
	select {
	case r.events <- event:
	default:
		r.logger.Warn("usage event buffer full, dropping event",
			"event_type", event.EventType,
			"resource_id", event.ResourceID,
		)
	}
}

// RecordValidation submits the event describing one completed validation
// run, whatever its verdict.
func (r *Recorder) RecordValidation(userID, templateID, sourceOrgID, targetOrgID string, recordCount int, result domain.ValidationResult) {
	event := domain.NewUsageEvent(NewEventID(), userID, domain.EventMigrationValidated, templateID, "template")
	event.Metadata["source_org_id"] = sourceOrgID
	event.Metadata["target_org_id"] = targetOrgID
	event.Metadata["record_count"] = strconv.Itoa(recordCount)
	event.Metadata["is_valid"] = strconv.FormatBool(result.IsValid)
	event.Metadata["error_count"] = strconv.Itoa(result.Summary.Errors)
	event.Metadata["warning_count"] = strconv.Itoa(result.Summary.Warnings)

	// Tally error titles so dashboards can rank failure causes.
	titles := make(map[string]int)
	for _, issue := range result.Issues {
		if issue.Severity == domain.SeverityError {
			titles[issue.Title]++
		}
	}
	for title, count := range titles {
		event.Metadata["error:"+title] = strconv.Itoa(count)
	}

	r.Record(event)
}

// run drains the event channel until Stop.
func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.persist(event)
		case <-r.ctx.Done():
			// Drain whatever is buffered before exiting.
			for {
				select {
				case event := <-r.events:
					r.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(event domain.UsageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.CreateUsageEvent(ctx, &event); err != nil {
		r.logger.Error("failed to persist usage event",
			"error", err,
			"event_type", event.EventType,
		)
	}
}

// NewEventID generates a unique usage event ID.
func NewEventID() string {
	return "evt_" + uuid.New().String()[:8]
}
