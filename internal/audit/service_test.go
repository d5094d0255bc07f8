package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubRepo struct {
	rows       []Event
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = filters, offset, limit
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	if offset > len(s.rows) {
		return nil, nil
	}
	return s.rows[offset:end], nil
}

func (s *stubRepo) All(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	s.lastFilter = filters
	return s.rows, nil
}

func sampleEvents(n int) []Event {
	base := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	rows := make([]Event, n)
	for i := range rows {
		rows[i] = Event{At: base.Add(-time.Duration(i) * time.Minute), TenantID: 1, UserID: 7, Route: "roles.update", Reason: "MISSING_PERMISSION"}
	}
	return rows
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: sampleEvents(3)}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{TenantID: 1, Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("unexpected paging: %+v", result.Paging)
	}
	if repo.lastLimit != 3 || repo.lastOffset != 0 {
		t.Fatalf("expected limit 3 offset 0, got %d %d", repo.lastLimit, repo.lastOffset)
	}

	result, err = svc.Timeline(context.Background(), TimelineFilters{TenantID: 1, Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline page 2: %v", err)
	}
	if len(result.Rows) != 1 || result.Paging.HasNext || result.Paging.PrevPage != 1 {
		t.Fatalf("unexpected page 2: %+v", result.Paging)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{TenantID: 1, PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected limit %d, got %d", maxPageSize+1, repo.lastLimit)
	}
	if _, err := svc.Timeline(context.Background(), TimelineFilters{}); err == nil {
		t.Fatalf("expected tenant to be required")
	}
}

func TestExporterWritesCSV(t *testing.T) {
	out, err := NewExporter().WriteCSV(sampleEvents(2))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "occurred_at,tenant_id") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "2024-03-10T10:00:00Z,1,7") {
		t.Fatalf("unexpected row: %s", lines[1])
	}
}
