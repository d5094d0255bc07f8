package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/carewell-hms/carewell/internal/audit"
	"github.com/carewell-hms/carewell/jobs"
)

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers on the queue's Redis connection.
func NewJobsCLI(opts asynq.RedisConnOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// SyncCatalog enqueues an immediate catalog sync.
func (c *JobsCLI) SyncCatalog(ctx context.Context) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueContext(ctx, jobs.NewCatalogSyncTask(), asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueues reports the audit and default queues.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{audit.QueueAudit, jobs.QueueDefault} {
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				out = append(out, QueueStats{Queue: queue})
				continue
			}
			return nil, err
		}
		stats := QueueStats{Queue: queue}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// ListDeadAuditEvents returns audit events that exhausted their retries.
func (c *JobsCLI) ListDeadAuditEvents(ctx context.Context, size int) ([]audit.Event, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	infos, err := c.inspector.ListArchivedTasks(audit.QueueAudit, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}
		return nil, err
	}
	events := make([]audit.Event, 0, len(infos))
	for _, info := range infos {
		ev, err := audit.DecodeEventTask(asynq.NewTask(info.Type, info.Payload))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// PrintStats writes a table of queue stats.
func PrintStats(w io.Writer, stats []QueueStats) {
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprintf(w, "%-10s %8s %8s %10s %6s %9s\n", "QUEUE", "PENDING", "ACTIVE", "SCHEDULED", "RETRY", "ARCHIVED")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%-10s %8d %8d %10d %6d %9d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
}
