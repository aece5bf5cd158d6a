package masterdata

import (
	"context"
	"time"
)

// Kind identifies a reference registry.
type Kind string

const (
	// KindNarrative holds reusable entry descriptions (historicos).
	KindNarrative Kind = "narrative"
	// KindCostCenter holds cost centers lines may be tagged with.
	KindCostCenter Kind = "cost_center"
)

// Kinds lists every registry.
var Kinds = []Kind{KindNarrative, KindCostCenter}

// Valid reports whether k is a known registry.
func (k Kind) Valid() bool {
	return k == KindNarrative || k == KindCostCenter
}

// Record is an entry in a reference registry.
type Record struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch lists the mutable fields of a record.
type Patch struct {
	Description *string
	IsActive    *bool
}

// ListFilters represents standard list page filters
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

func (f ListFilters) normalized() ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	return f
}

// Repository persists registry records.
type Repository interface {
	ListRecords(ctx context.Context, kind Kind, filters ListFilters) ([]Record, int, error)
	GetRecord(ctx context.Context, kind Kind, id int64) (Record, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	// UpdateRecord applies the set fields of patch in one statement, so
	// concurrent patches to different fields never overwrite each other.
	UpdateRecord(ctx context.Context, kind Kind, id int64, patch Patch, at time.Time) (Record, error)
}
