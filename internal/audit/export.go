package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

var csvHeader = []string{"occurred_at", "tenant_id", "user_id", "role", "route", "method", "path", "requirement", "allowed", "reason", "matched_permission", "request_id"}

// Exporter menulis ekspor CSV audit otorisasi.
type Exporter struct{}

// NewExporter membuat exporter baru.
func NewExporter() *Exporter {
	return &Exporter{}
}

// WriteCSV encodes events in the order given.
func (e *Exporter) WriteCSV(rows []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, ev := range rows {
		role := ev.RoleName
		if ev.SuperAdmin {
			role = "SUPER_ADMIN"
		}
		record := []string{
			ev.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(ev.TenantID, 10),
			strconv.FormatInt(ev.UserID, 10),
			role,
			ev.Route,
			ev.Method,
			ev.Path,
			ev.Requirement,
			strconv.FormatBool(ev.Allowed),
			ev.Reason,
			ev.MatchedPermission,
			ev.RequestID,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
