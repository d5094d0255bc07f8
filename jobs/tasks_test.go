package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/audit"
	jobmetrics "github.com/carewell-hms/carewell/internal/jobs"
)

type memorySink struct {
	events []audit.Event
	err    error
}

func (s *memorySink) Write(ctx context.Context, ev audit.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestAuditEventJobPersistsEvent(t *testing.T) {
	sink := &memorySink{}
	job := NewAuditEventJob(sink, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	ev := audit.Event{ID: uuid.New(), TenantID: 2, UserID: 9, Route: "roles.delete", Reason: "MISSING_PERMISSION"}
	task, err := audit.NewEventTask(ev)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sink.events, 1)
	require.Equal(t, ev.ID, sink.events[0].ID)
	require.Equal(t, "roles.delete", sink.events[0].Route)
}

func TestAuditEventJobRetriesSinkFailures(t *testing.T) {
	job := NewAuditEventJob(&memorySink{err: errors.New("db down")}, nil, nil)
	task, err := audit.NewEventTask(audit.Event{ID: uuid.New()})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestAuditEventJobSkipsMalformedPayload(t *testing.T) {
	job := NewAuditEventJob(&memorySink{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(audit.TaskTypeAuthzEvent, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type seederFunc func(ctx context.Context) error

func (f seederFunc) SeedDefaults(ctx context.Context) error { return f(ctx) }

func TestCatalogSyncJob(t *testing.T) {
	calls := 0
	job := NewCatalogSyncJob(seederFunc(func(ctx context.Context) error {
		calls++
		return nil
	}), nil, nil)
	require.NoError(t, job.Handle(context.Background(), NewCatalogSyncTask()))
	require.Equal(t, 1, calls)

	failing := NewCatalogSyncJob(seederFunc(func(ctx context.Context) error { return errors.New("boom") }), nil, nil)
	require.Error(t, failing.Handle(context.Background(), NewCatalogSyncTask()))
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHealthReportsQueues(t *testing.T) {
	h := NewHandler(stubInspector{audit.QueueAudit: {Queue: audit.QueueAudit, Pending: 4, Retry: 1}}, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got []queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, []queueHealth{{Queue: audit.QueueAudit, Pending: 4, Retry: 1}, {Queue: QueueDefault}}, got)
}
