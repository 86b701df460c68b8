package usage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

// captureClient implements Client and records what it was asked to send.
type captureClient struct {
	batches [][]domain.UsageEvent
	err     error
}

func (c *captureClient) SendBatch(ctx context.Context, events []domain.UsageEvent) error {
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, events)
	return nil
}

func unreportedEvent(id string) domain.UsageEvent {
	return domain.NewUsageEvent(id, "user-1", domain.EventMigrationValidated, "tmpl_products", "template")
}

// =============================================================================
// Reporter Tests
// =============================================================================

func TestReportNow_SendsAndMarks(t *testing.T) {
	s := &eventStore{}
	e1 := unreportedEvent("evt_1")
	e2 := unreportedEvent("evt_2")
	s.events = []domain.UsageEvent{e1, e2}

	client := &captureClient{}
	reporter := NewReporter(ReporterConfig{Store: s, Client: client})

	reporter.ReportNow(context.Background())

	require.Len(t, client.batches, 1)
	assert.Len(t, client.batches[0], 2)

	for _, e := range s.stored() {
		assert.True(t, e.IsReported())
	}
}

func TestReportNow_NothingPending(t *testing.T) {
	s := &eventStore{}
	client := &captureClient{}
	reporter := NewReporter(ReporterConfig{Store: s, Client: client})

	reporter.ReportNow(context.Background())

	assert.Empty(t, client.batches)
}

func TestReportNow_SendFailureKeepsEventsUnreported(t *testing.T) {
	s := &eventStore{}
	s.events = []domain.UsageEvent{unreportedEvent("evt_1")}

	client := &captureClient{err: errors.New("connection refused")}
	reporter := NewReporter(ReporterConfig{Store: s, Client: client})

	reporter.ReportNow(context.Background())

	for _, e := range s.stored() {
		assert.False(t, e.IsReported(), "failed sends must leave events for retry")
	}
}

func TestReportNow_RespectsBatchSize(t *testing.T) {
	s := &eventStore{}
	for i := 0; i < 5; i++ {
		s.events = append(s.events, unreportedEvent(NewEventID()))
	}

	client := &captureClient{}
	reporter := NewReporter(ReporterConfig{Store: s, Client: client, BatchSize: 2})

	reporter.ReportNow(context.Background())

	require.Len(t, client.batches, 1)
	assert.Len(t, client.batches[0], 2)
}

func TestReporter_StartStop(t *testing.T) {
	s := &eventStore{}
	s.events = []domain.UsageEvent{unreportedEvent("evt_1")}
	client := &captureClient{}

	reporter := NewReporter(ReporterConfig{Store: s, Client: client, Interval: time.Hour})
	go reporter.Start(context.Background())

	// The startup cycle reports pending events before the first tick.
	assert.Eventually(t, func() bool {
		return len(client.batches) == 1
	}, time.Second, 10*time.Millisecond)

	reporter.Stop()
}

func TestReporter_DrainsBacklogInOneCycle(t *testing.T) {
	s := &eventStore{}
	for i := 0; i < 5; i++ {
		s.events = append(s.events, unreportedEvent(NewEventID()))
	}

	client := &captureClient{}
	reporter := NewReporter(ReporterConfig{Store: s, Client: client, Interval: time.Hour, BatchSize: 2})
	go reporter.Start(context.Background())

	// A full batch means more may be waiting; the whole backlog clears on the
	// startup cycle instead of two events per hour.
	assert.Eventually(t, func() bool {
		for _, e := range s.stored() {
			if !e.IsReported() {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	reporter.Stop()
	assert.Len(t, client.batches, 3)
}

func TestReporter_StopFlushesPending(t *testing.T) {
	s := &eventStore{}
	client := &captureClient{}
	reporter := NewReporter(ReporterConfig{Store: s, Client: client, Interval: time.Hour})
	go reporter.Start(context.Background())

	late := unreportedEvent("evt_late")
	require.NoError(t, s.CreateUsageEvent(context.Background(), &late))

	reporter.Stop()

	for _, e := range s.stored() {
		assert.True(t, e.IsReported(), "pending events are handed off before shutdown")
	}
}

// =============================================================================
// HTTP Client Tests
// =============================================================================

func TestHTTPClient_SendBatch(t *testing.T) {
	var got batchRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events/batch", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{BaseURL: srv.URL, APIKey: "key-123"}, nil)

	event := unreportedEvent("evt_1")
	event.Metadata["record_count"] = "3"
	err := client.SendBatch(context.Background(), []domain.UsageEvent{event})
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", auth)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "evt_1", got.Events[0].EventID)
	assert.Equal(t, "migration.validated", got.Events[0].EventType)
	assert.Equal(t, "3", got.Events[0].Metadata["record_count"])
}

func TestHTTPClient_SendBatch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{BaseURL: srv.URL}, nil)

	err := client.SendBatch(context.Background(), []domain.UsageEvent{unreportedEvent("evt_1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPClient_SendBatch_EmptyIsNoop(t *testing.T) {
	client := NewHTTPClient(Config{BaseURL: "http://unreachable.invalid"}, nil)
	assert.NoError(t, client.SendBatch(context.Background(), nil))
}

func TestNoopClient_SendBatch(t *testing.T) {
	client := NewNoopClient(nil)
	assert.NoError(t, client.SendBatch(context.Background(), []domain.UsageEvent{unreportedEvent("evt_1")}))
}
