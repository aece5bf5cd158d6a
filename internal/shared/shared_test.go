package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &recordingExecer{}
	logger := &AuditLogger{db: db}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	err := logger.Record(context.Background(), AuditLog{ActorID: 7, Action: "journal.post", Entity: "journal_entry", EntityID: "12", At: at})
	require.NoError(t, err)
	require.Len(t, db.args, 6)
	assert.Equal(t, []byte(`{}`), db.args[4])
	assert.Equal(t, at.UTC(), db.args[5])

	require.NoError(t, logger.Record(context.Background(), AuditLog{Action: "account.create", Entity: "account", EntityID: "1"}))
	assert.Nil(t, db.args[5])
}

func TestAuditLoggerRejects(t *testing.T) {
	db := &recordingExecer{}
	logger := &AuditLogger{db: db}
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "journal.post"}))
	assert.Empty(t, db.sql)

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))

	db.err = errors.New("relation audit_logs does not exist")
	require.ErrorIs(t, logger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}), db.err)
}

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, perPage, total int
		want                 Pagination
		next                 bool
	}{
		{1, 20, 0, Pagination{Page: 1, PerPage: 20, Total: 0, TotalPages: 0}, false},
		{1, 20, 41, Pagination{Page: 1, PerPage: 20, Total: 41, TotalPages: 3}, true},
		{3, 20, 41, Pagination{Page: 3, PerPage: 20, Total: 41, TotalPages: 3}, false},
		{0, 0, 40, Pagination{Page: 1, PerPage: 20, Total: 40, TotalPages: 2}, true},
	}
	for _, tc := range cases {
		got := NewPagination(tc.page, tc.perPage, tc.total)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.next, got.HasNext())
	}
}
