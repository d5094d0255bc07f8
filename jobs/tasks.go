package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/carewell-hms/carewell/internal/audit"
	jobmetrics "github.com/carewell-hms/carewell/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync re-registers the compiled permission catalog.
	TaskCatalogSync = "catalog:sync"
)

// NewCatalogSyncTask constructs the catalog sync task. It carries no payload.
func NewCatalogSyncTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogSync, nil)
}

// AuditEventJob persists authorization events handed over by audit.QueueSink.
type AuditEventJob struct {
	sink    audit.Sink
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditEventJob constructs the job writing to sink.
func NewAuditEventJob(sink audit.Sink, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditEventJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditEventJob{sink: sink, logger: logger, metrics: metrics}
}

// Handle processes audit.TaskTypeAuthzEvent tasks. Undecodable payloads are not retried.
func (j *AuditEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(audit.TaskTypeAuthzEvent)
	ev, err := audit.DecodeEventTask(t)
	if err != nil {
		j.logger.Error("drop audit task", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	if err := j.sink.Write(ctx, ev); err != nil {
		j.logger.Warn("persist audit event",
			slog.String("event_id", ev.ID.String()),
			slog.Int64("tenant_id", ev.TenantID),
			slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddAuditEvents(ev.Allowed, 1)
	return tracker.End(nil)
}

// CatalogSeeder registers the default permission catalog.
type CatalogSeeder interface {
	SeedDefaults(ctx context.Context) error
}

// CatalogSyncJob keeps the stored catalog a superset of the compiled defaults.
type CatalogSyncJob struct {
	catalog CatalogSeeder
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewCatalogSyncJob constructs the sync job.
func NewCatalogSyncJob(catalog CatalogSeeder, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogSyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogSyncJob{catalog: catalog, logger: logger, metrics: metrics}
}

// Handle processes TaskCatalogSync tasks.
func (j *CatalogSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskCatalogSync)
	if j.catalog == nil {
		return tracker.End(errors.New("jobs: catalog not configured"))
	}
	if err := j.catalog.SeedDefaults(ctx); err != nil {
		j.logger.Error("catalog sync", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("catalog synced", slog.String("job", TaskCatalogSync))
	return tracker.End(nil)
}
