package activity

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/shared"
)

// Filters narrows the activity timeline. Zero values mean "any".
type Filters struct {
	From       time.Time
	To         time.Time
	CompanyID  uuid.UUID
	ActorID    uuid.UUID
	EntityType string
	Severity   shared.Severity
	Page       int
	PageSize   int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps one timeline page with its paging information.
type Result struct {
	Rows   []shared.ActivityLog
	Paging PagingInfo
}
