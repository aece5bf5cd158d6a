package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

var tables = map[Kind]string{
	KindNarrative:  "narratives",
	KindCostCenter: "cost_centers",
}

// repo implements Repository interface
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{db: pool}
}

func table(kind Kind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", unknownKind(kind)
	}
	return t, nil
}

func (r *repo) ListRecords(ctx context.Context, kind Kind, filters ListFilters) ([]Record, int, error) {
	t, err := table(kind)
	if err != nil {
		return nil, 0, err
	}
	var (
		conds []string
		args  []any
	)
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(code ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+t+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, (filters.Page-1)*filters.Limit)
	query := `SELECT id, code, description, is_active, created_at, updated_at FROM ` + t + where +
		fmt.Sprintf(` ORDER BY code LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Kind: kind}
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.Description, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (r *repo) GetRecord(ctx context.Context, kind Kind, id int64) (Record, error) {
	t, err := table(kind)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Kind: kind}
	err = r.db.QueryRow(ctx, `SELECT id, code, description, is_active, created_at, updated_at FROM `+t+` WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Code, &rec.Description, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, NotFound(kind, id)
	}
	return rec, err
}

func (r *repo) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	t, err := table(rec.Kind)
	if err != nil {
		return Record{}, err
	}
	query := `INSERT INTO ` + t + ` (code, description, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err = r.db.QueryRow(ctx, query, rec.Code, rec.Description, rec.IsActive, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Record{}, Duplicate(rec.Kind, rec.Code)
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *repo) UpdateRecord(ctx context.Context, kind Kind, id int64, patch Patch, at time.Time) (Record, error) {
	t, err := table(kind)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Kind: kind}
	err = r.db.QueryRow(ctx, `UPDATE `+t+`
		SET description = COALESCE($1::text, description), is_active = COALESCE($2::boolean, is_active), updated_at = $3
		WHERE id = $4
		RETURNING id, code, description, is_active, created_at, updated_at`,
		patch.Description, patch.IsActive, at, id).
		Scan(&rec.ID, &rec.Code, &rec.Description, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, NotFound(kind, id)
	}
	return rec, err
}
