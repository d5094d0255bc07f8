package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carewell-hms/carewell/internal/audit"
	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/shared"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// Deklarasi route beserta permission yang dibutuhkan.
var (
	TimelineRoute = rbac.Route{Name: "audit.timeline", Requirement: rbac.Single(shared.PermAuditView)}
	ExportRoute   = rbac.Route{Name: "audit.export", Requirement: rbac.AllOf(shared.PermAuditView, shared.PermAuditExport), Sensitive: true}
)

// Routes mengembalikan semua route paket ini untuk divalidasi saat startup.
func Routes() []rbac.Route {
	return []rbac.Route{TimelineRoute, ExportRoute}
}

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Event, error)
}

// Exporter writes audit timeline exports.
type Exporter interface {
	WriteCSV(rows []audit.Event) ([]byte, error)
}

// Handler menangani permintaan audit timeline.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	exporter Exporter
	rbac     rbac.Middleware
	now      func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TimelineService, exporter Exporter, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		exporter: exporter,
		rbac:     mw,
		now:      time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.filtersFor(w, r)
	if !ok {
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	if result.Rows == nil {
		result.Rows = []audit.Event{}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "")
		return
	}
	filters, ok := h.filtersFor(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	csvBytes, err := h.exporter.WriteCSV(rows)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"authz-audit.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// filtersFor membaca filter dan membatasi tenant ke tenant principal.
func (h *Handler) filtersFor(w http.ResponseWriter, r *http.Request) (audit.TimelineFilters, bool) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Forbidden(w)
		return audit.TimelineFilters{}, false
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return audit.TimelineFilters{}, false
	}
	filters.TenantID = principal.TenantID
	return filters, true
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	query := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(query.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "to"}
	}
	fromStr := strings.TrimSpace(query.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "from"}
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}

	page := 1
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page"}
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(query.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page_size"}
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}

	filters := audit.TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Route:    strings.TrimSpace(query.Get("route")),
		Reason:   strings.ToUpper(strings.TrimSpace(query.Get("reason"))),
		Page:     page,
		PageSize: pageSize,
	}
	if v := strings.TrimSpace(query.Get("user_id")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "user_id"}
		}
		filters.UserID = parsed
	}
	if v := strings.TrimSpace(query.Get("allowed")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return audit.TimelineFilters{}, validationError{field: "allowed"}
		}
		filters.Allowed = &parsed
	}
	return filters, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+v.field)
		return
	}
	h.handleServerError(w, "validate filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
