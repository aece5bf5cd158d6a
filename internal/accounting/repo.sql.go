package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	// LockAccounts locks the rows in id order and returns those that exist.
	LockAccounts(ctx context.Context, ids []int64) (map[int64]Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	// ListChildCodes returns the codes under parentID, or root codes when nil,
	// including inactive accounts.
	ListChildCodes(ctx context.Context, parentID *int64) ([]string, error)
	InsertAccount(ctx context.Context, acc Account) (Account, error)
	UpdateAccount(ctx context.Context, acc Account) (Account, error)
	CountLines(ctx context.Context, accountID int64) (int, error)
	CountActiveChildren(ctx context.Context, accountID int64) (int, error)
	BumpBalanceVersions(ctx context.Context, ids []int64) error
	LookupReference(ctx context.Context, kind ReferenceKind, id int64) (Reference, bool, error)

	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	UpdateJournalEntry(ctx context.Context, id int64, in PostingInput) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error)
	DeleteJournalLines(ctx context.Context, entryID int64) error
	DeleteJournalEntry(ctx context.Context, entryID int64) error
	GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	LockJournal(ctx context.Context, entryID int64) (JournalEntry, error)
	ListJournalEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, int, error)
	LinkSource(ctx context.Context, ref uuid.UUID, entryID int64) error

	SumLines(ctx context.Context, accountID int64, rng DateRange) (LineTotals, error)
	SumLinesByAccount(ctx context.Context, rng DateRange) (map[int64]LineTotals, error)
	ListMovements(ctx context.Context, accountID int64, limit int) ([]Movement, error)
	ListEntryTotals(ctx context.Context) ([]EntryTotals, error)
}

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs Repository. maxRetries bounds re-runs of a
// transaction aborted by a serialization failure or deadlock.
func NewRepository(pool *pgxpool.Pool, maxRetries uint64) *Repository {
	return &Repository{pool: pool, opts: db.TxOptions{MaxRetries: maxRetries, InitialInterval: 20 * time.Millisecond}}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, code, description, type, nature, level, parent_id, accepts_postings, is_active, balance_version, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Description, &a.Type, &a.Nature, &a.Level, &a.ParentID, &a.AcceptsPostings, &a.IsActive, &a.BalanceVersion, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, accountNotFound(id)
	}
	return acc, err
}

func (r *txRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	acc, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, &NotFoundError{Entity: "account", Key: code}
	}
	return acc, err
}

func (r *txRepository) LockAccounts(ctx context.Context, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, rows.Err()
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *txRepository) ListChildCodes(ctx context.Context, parentID *int64) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if parentID == nil {
		rows, err = r.tx.Query(ctx, `SELECT code FROM accounts WHERE parent_id IS NULL`)
	} else {
		rows, err = r.tx.Query(ctx, `SELECT code FROM accounts WHERE parent_id=$1`, *parentID)
	}
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *txRepository) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, description, type, nature, level, parent_id, accepts_postings, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, balance_version`,
		acc.Code, acc.Description, acc.Type, acc.Nature, acc.Level, acc.ParentID, acc.AcceptsPostings, acc.IsActive, acc.CreatedAt, acc.UpdatedAt)
	if err := row.Scan(&acc.ID, &acc.BalanceVersion); err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, &ConflictError{Entity: "account code", Key: acc.Code}
		}
		return Account{}, err
	}
	return acc, nil
}

// UpdateAccount writes only the mutable columns.
func (r *txRepository) UpdateAccount(ctx context.Context, acc Account) (Account, error) {
	updated, err := scanAccount(r.tx.QueryRow(ctx, `UPDATE accounts SET description=$2, accepts_postings=$3, is_active=$4, updated_at=$5
WHERE id=$1 RETURNING `+accountColumns, acc.ID, acc.Description, acc.AcceptsPostings, acc.IsActive, acc.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, accountNotFound(acc.ID)
	}
	return updated, err
}

func (r *txRepository) CountLines(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, accountID).Scan(&n)
	return n, err
}

func (r *txRepository) CountActiveChildren(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1 AND is_active`, accountID).Scan(&n)
	return n, err
}

func (r *txRepository) BumpBalanceVersions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET balance_version = balance_version + 1 WHERE id = ANY($1)`, ids)
	return err
}

var referenceTables = map[ReferenceKind]string{
	ReferenceNarrative:  "narratives",
	ReferenceCostCenter: "cost_centers",
}

func (r *txRepository) LookupReference(ctx context.Context, kind ReferenceKind, id int64) (Reference, bool, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return Reference{}, false, fmt.Errorf("accounting: unknown reference kind %q", kind)
	}
	var ref Reference
	err := r.tx.QueryRow(ctx, `SELECT id, code, is_active FROM `+table+` WHERE id=$1 FOR SHARE`, id).Scan(&ref.ID, &ref.Code, &ref.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reference{}, false, nil
	}
	if err != nil {
		return Reference{}, false, err
	}
	return ref, true, nil
}

const entryColumns = `e.id, e.entry_date, e.narrative_id, e.complement, e.batch_number, COALESCE(e.posted_by, 0), COALESCE(s.ref_id, '00000000-0000-0000-0000-000000000000'::uuid), e.created_at, e.updated_at`

const entryFrom = ` FROM journal_entries e LEFT JOIN source_links s ON s.je_id = e.id`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Date, &e.NarrativeID, &e.Complement, &e.BatchNumber, &e.PostedBy, &e.SourceID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	entry := JournalEntry{
		Date:        in.Date,
		NarrativeID: in.NarrativeID,
		Complement:  in.Complement,
		BatchNumber: in.BatchNumber,
		PostedBy:    in.PostedBy,
		SourceID:    in.SourceID,
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, narrative_id, complement, batch_number, posted_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, in.Date, in.NarrativeID, in.Complement, in.BatchNumber, nullInt(in.PostedBy))
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateJournalEntry(ctx context.Context, id int64, in PostingInput) (JournalEntry, error) {
	entry := JournalEntry{
		ID:          id,
		Date:        in.Date,
		NarrativeID: in.NarrativeID,
		Complement:  in.Complement,
		BatchNumber: in.BatchNumber,
		PostedBy:    in.PostedBy,
		SourceID:    in.SourceID,
	}
	row := r.tx.QueryRow(ctx, `UPDATE journal_entries SET entry_date=$2, narrative_id=$3, complement=$4, batch_number=$5, posted_by=$6, updated_at=NOW()
WHERE id=$1 RETURNING created_at, updated_at`, id, in.Date, in.NarrativeID, in.Complement, in.BatchNumber, nullInt(in.PostedBy))
	if err := row.Scan(&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, entryNotFound(id)
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		jl := JournalLine{
			EntryID:      entryID,
			AccountID:    line.AccountID,
			Side:         line.Side,
			Amount:       line.Amount.Round(amountScale),
			CostCenterID: line.CostCenterID,
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (je_id, account_id, side, amount, cost_center_id)
VALUES ($1,$2,$3,$4::numeric,$5) RETURNING id`, entryID, line.AccountID, line.Side, toNumeric(line.Amount), line.CostCenterID).Scan(&jl.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, jl)
	}
	return out, nil
}

func (r *txRepository) DeleteJournalLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID)
	return err
}

func (r *txRepository) DeleteJournalEntry(ctx context.Context, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return entryNotFound(entryID)
	}
	return nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	return r.loadJournal(ctx, entryID, false)
}

func (r *txRepository) LockJournal(ctx context.Context, entryID int64) (JournalEntry, error) {
	return r.loadJournal(ctx, entryID, true)
}

func (r *txRepository) loadJournal(ctx context.Context, entryID int64, lock bool) (JournalEntry, error) {
	query := `SELECT ` + entryColumns + entryFrom + ` WHERE e.id=$1`
	if lock {
		query += ` FOR UPDATE OF e`
	}
	entry, err := scanEntry(r.tx.QueryRow(ctx, query, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, entryNotFound(entryID)
		}
		return JournalEntry{}, err
	}
	lines, err := r.linesFor(ctx, []int64{entryID})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines[entryID]
	return entry, nil
}

func (r *txRepository) linesFor(ctx context.Context, entryIDs []int64) (map[int64][]JournalLine, error) {
	out := make(map[int64][]JournalLine, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT id, je_id, account_id, side, amount::text, cost_center_id
FROM journal_lines WHERE je_id = ANY($1) ORDER BY je_id, id`, entryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line   JournalLine
			amount string
		)
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Side, &amount, &line.CostCenterID); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out[line.EntryID] = append(out[line.EntryID], line)
	}
	return out, rows.Err()
}

func (r *txRepository) ListJournalEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, int, error) {
	where, args := entryWhere(filter)
	var total int
	if err := r.tx.QueryRow(ctx, `SELECT COUNT(*)`+entryFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.PerPage, filter.Offset())
	query := `SELECT ` + entryColumns + entryFrom + where +
		fmt.Sprintf(` ORDER BY e.entry_date DESC, e.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range entries {
		entries[i].Lines = lines[entries[i].ID]
	}
	return entries, total, nil
}

func entryWhere(filter EntryFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filter.Range.From.IsZero() {
		add("e.entry_date >= $%d", filter.Range.From)
	}
	if !filter.Range.To.IsZero() {
		add("e.entry_date <= $%d", filter.Range.To)
	}
	if filter.BatchNumber != "" {
		add("e.batch_number = $%d", filter.BatchNumber)
	}
	if filter.AccountID != 0 {
		add("EXISTS (SELECT 1 FROM journal_lines l WHERE l.je_id = e.id AND l.account_id = $%d)", filter.AccountID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *txRepository) LinkSource(ctx context.Context, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (ref_id, je_id) VALUES ($1,$2)`, ref, entryID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return &ConflictError{Entity: "source", Key: ref.String()}
		}
		return err
	}
	return nil
}

func rangeArgs(rng DateRange) (any, any) {
	var from, to any
	if !rng.From.IsZero() {
		from = rng.From
	}
	if !rng.To.IsZero() {
		to = rng.To
	}
	return from, to
}

func (r *txRepository) SumLines(ctx context.Context, accountID int64, rng DateRange) (LineTotals, error) {
	from, to := rangeArgs(rng)
	var debit, credit string
	err := r.tx.QueryRow(ctx, `SELECT
	COALESCE(SUM(l.amount) FILTER (WHERE l.side='DEBIT'), 0)::text,
	COALESCE(SUM(l.amount) FILTER (WHERE l.side='CREDIT'), 0)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id=$1
  AND ($2::date IS NULL OR e.entry_date >= $2::date)
  AND ($3::date IS NULL OR e.entry_date <= $3::date)`, accountID, from, to).Scan(&debit, &credit)
	if err != nil {
		return LineTotals{}, err
	}
	return parseTotals(debit, credit)
}

func (r *txRepository) SumLinesByAccount(ctx context.Context, rng DateRange) (map[int64]LineTotals, error) {
	from, to := rangeArgs(rng)
	rows, err := r.tx.Query(ctx, `SELECT l.account_id,
	COALESCE(SUM(l.amount) FILTER (WHERE l.side='DEBIT'), 0)::text,
	COALESCE(SUM(l.amount) FILTER (WHERE l.side='CREDIT'), 0)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE ($1::date IS NULL OR e.entry_date >= $1::date)
  AND ($2::date IS NULL OR e.entry_date <= $2::date)
GROUP BY l.account_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]LineTotals)
	for rows.Next() {
		var (
			id            int64
			debit, credit string
		)
		if err := rows.Scan(&id, &debit, &credit); err != nil {
			return nil, err
		}
		t, err := parseTotals(debit, credit)
		if err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, rows.Err()
}

func (r *txRepository) ListMovements(ctx context.Context, accountID int64, limit int) ([]Movement, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.id, e.id, e.entry_date, e.narrative_id, e.complement, l.side, l.amount::text, l.cost_center_id
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id=$1
ORDER BY e.entry_date DESC, e.id DESC, l.id DESC
LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var (
			m      Movement
			amount string
		)
		if err := rows.Scan(&m.LineID, &m.EntryID, &m.Date, &m.NarrativeID, &m.Complement, &m.Side, &amount, &m.CostCenterID); err != nil {
			return nil, err
		}
		if m.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) ListEntryTotals(ctx context.Context) ([]EntryTotals, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.id,
	COALESCE(SUM(l.amount) FILTER (WHERE l.side='DEBIT'), 0)::text,
	COALESCE(SUM(l.amount) FILTER (WHERE l.side='CREDIT'), 0)::text,
	COUNT(l.id) FILTER (WHERE l.side='DEBIT'),
	COUNT(l.id) FILTER (WHERE l.side='CREDIT'),
	COUNT(l.id) FILTER (WHERE l.amount <= 0)
FROM journal_entries e LEFT JOIN journal_lines l ON l.je_id = e.id
GROUP BY e.id ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntryTotals
	for rows.Next() {
		var (
			t             EntryTotals
			debit, credit string
		)
		if err := rows.Scan(&t.EntryID, &debit, &credit, &t.DebitLines, &t.CreditLines, &t.NonPositive); err != nil {
			return nil, err
		}
		totals, err := parseTotals(debit, credit)
		if err != nil {
			return nil, err
		}
		t.Debit, t.Credit = totals.Debit, totals.Credit
		out = append(out, t)
	}
	return out, rows.Err()
}

func parseTotals(debit, credit string) (LineTotals, error) {
	d, err := decimal.NewFromString(debit)
	if err != nil {
		return LineTotals{}, fmt.Errorf("accounting: parse debit total: %w", err)
	}
	c, err := decimal.NewFromString(credit)
	if err != nil {
		return LineTotals{}, fmt.Errorf("accounting: parse credit total: %w", err)
	}
	return LineTotals{Debit: d, Credit: c}, nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(v decimal.Decimal) string {
	return v.StringFixed(amountScale)
}
