package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one authorization outcome.
type Event struct {
	ID                uuid.UUID `json:"id"`
	At                time.Time `json:"at"`
	TenantID          int64     `json:"tenant_id"`
	UserID            int64     `json:"user_id"`
	RoleID            *int64    `json:"role_id,omitempty"`
	RoleName          string    `json:"role_name,omitempty"`
	SuperAdmin        bool      `json:"super_admin"`
	Route             string    `json:"route"`
	Method            string    `json:"method"`
	Path              string    `json:"path"`
	Requirement       string    `json:"requirement"`
	Allowed           bool      `json:"allowed"`
	Reason            string    `json:"reason"`
	MatchedPermission string    `json:"matched_permission,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	RemoteAddr        string    `json:"remote_addr,omitempty"`
}

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	TenantID int64
	From     time.Time
	To       time.Time
	UserID   int64
	Route    string
	Reason   string
	Allowed  *bool
	Page     int
	PageSize int
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []Event    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
