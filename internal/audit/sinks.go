package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queue and task names used by the audit pipeline.
const (
	QueueAudit         = "audit"
	TaskTypeAuthzEvent = "audit:authz"
)

// PGSink appends events to authz_audit_log.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink returns a new PGSink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// Write persists the event. Replays of the same event id are ignored.
func (s *PGSink) Write(ctx context.Context, ev Event) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: postgres sink not initialised")
	}
	const q = `INSERT INTO authz_audit_log (id, occurred_at, tenant_id, user_id, role_id, role_name, super_admin, route,
    method, path, requirement, allowed, reason, matched_permission, request_id, remote_addr)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO NOTHING`
	var roleID pgtype.Int8
	if ev.RoleID != nil {
		roleID = pgtype.Int8{Int64: *ev.RoleID, Valid: true}
	}
	_, err := s.pool.Exec(ctx, q, ev.ID, ev.At, ev.TenantID, ev.UserID, roleID, nullableText(ev.RoleName), ev.SuperAdmin,
		ev.Route, ev.Method, ev.Path, ev.Requirement, ev.Allowed, ev.Reason, nullableText(ev.MatchedPermission),
		nullableText(ev.RequestID), nullableText(ev.RemoteAddr))
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Enqueuer submits tasks to asynq.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands events to the background worker.
type QueueSink struct {
	client Enqueuer
}

// NewQueueSink returns a QueueSink backed by client.
func NewQueueSink(client Enqueuer) *QueueSink {
	return &QueueSink{client: client}
}

// Write enqueues the event keyed by its id.
func (s *QueueSink) Write(ctx context.Context, ev Event) error {
	task, err := NewEventTask(ev)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, asynq.Queue(QueueAudit), asynq.TaskID(ev.ID.String()), asynq.MaxRetry(10))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("audit: enqueue event: %w", err)
	}
	return nil
}

// NewEventTask constructs an asynq task for ev.
func NewEventTask(ev Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuthzEvent, data), nil
}

// DecodeEventTask reads the event carried by t.
func DecodeEventTask(t *asynq.Task) (Event, error) {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("audit: decode task: %w", err)
	}
	return ev, nil
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Write logs the event at info level.
func (s *LogSink) Write(ctx context.Context, ev Event) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "authz decision",
		slog.String("event_id", ev.ID.String()),
		slog.Int64("tenant_id", ev.TenantID),
		slog.Int64("user_id", ev.UserID),
		slog.String("route", ev.Route),
		slog.String("requirement", ev.Requirement),
		slog.Bool("allowed", ev.Allowed),
		slog.String("reason", ev.Reason),
		slog.String("matched_permission", ev.MatchedPermission),
	)
	return nil
}

var (
	_ Sink = (*PGSink)(nil)
	_ Sink = (*QueueSink)(nil)
	_ Sink = (*LogSink)(nil)
)
