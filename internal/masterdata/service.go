package masterdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

const (
	maxCodeLength        = 10
	maxDescriptionLength = 255
)

// Service manages the narrative and cost-center registries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new master data service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns a page of records with the total count.
func (s *Service) List(ctx context.Context, kind Kind, filters ListFilters) ([]Record, int, error) {
	if !kind.Valid() {
		return nil, 0, unknownKind(kind)
	}
	return s.repo.ListRecords(ctx, kind, filters.normalized())
}

// Get loads one record.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (Record, error) {
	if !kind.Valid() {
		return Record{}, unknownKind(kind)
	}
	if id <= 0 {
		return Record{}, fmt.Errorf("%w: invalid %s id", httpx.ErrValidation, kind)
	}
	return s.repo.GetRecord(ctx, kind, id)
}

// Create registers a new active record.
func (s *Service) Create(ctx context.Context, kind Kind, code, description string) (Record, error) {
	if !kind.Valid() {
		return Record{}, unknownKind(kind)
	}
	rec := Record{
		Kind:        kind,
		Code:        strings.TrimSpace(code),
		Description: strings.TrimSpace(description),
		IsActive:    true,
	}
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	now := s.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	return s.repo.CreateRecord(ctx, rec)
}

// Update applies a patch. The code is immutable.
func (s *Service) Update(ctx context.Context, kind Kind, id int64, patch Patch) (Record, error) {
	if !kind.Valid() {
		return Record{}, unknownKind(kind)
	}
	if id <= 0 {
		return Record{}, fmt.Errorf("%w: invalid %s id", httpx.ErrValidation, kind)
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		switch {
		case desc == "":
			return Record{}, fmt.Errorf("%w: description is required", httpx.ErrValidation)
		case len(desc) > maxDescriptionLength:
			return Record{}, fmt.Errorf("%w: description exceeds %d characters", httpx.ErrValidation, maxDescriptionLength)
		}
		patch.Description = &desc
	}
	if patch.Description == nil && patch.IsActive == nil {
		return s.repo.GetRecord(ctx, kind, id)
	}
	return s.repo.UpdateRecord(ctx, kind, id, patch, s.now())
}

// Deactivate hides a record from new postings. Existing lines keep
// referencing it.
func (s *Service) Deactivate(ctx context.Context, kind Kind, id int64) (Record, error) {
	inactive := false
	return s.Update(ctx, kind, id, Patch{IsActive: &inactive})
}

func validateRecord(rec Record) error {
	switch {
	case rec.Code == "":
		return fmt.Errorf("%w: code is required", httpx.ErrValidation)
	case len(rec.Code) > maxCodeLength:
		return fmt.Errorf("%w: code exceeds %d characters", httpx.ErrValidation, maxCodeLength)
	case rec.Description == "":
		return fmt.Errorf("%w: description is required", httpx.ErrValidation)
	case len(rec.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description exceeds %d characters", httpx.ErrValidation, maxDescriptionLength)
	}
	return nil
}

func unknownKind(kind Kind) error {
	return fmt.Errorf("%w: unknown registry %q", httpx.ErrNotFound, kind)
}

// NotFound builds the error repositories return for a missing record.
func NotFound(kind Kind, id int64) error {
	return fmt.Errorf("%w: %s %d", httpx.ErrNotFound, kind, id)
}

// Duplicate builds the error repositories return for a repeated code.
func Duplicate(kind Kind, code string) error {
	return fmt.Errorf("%w: %s code %q", httpx.ErrDuplicate, kind, code)
}
