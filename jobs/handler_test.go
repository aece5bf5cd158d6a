package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func serveHealth(t *testing.T, h *Handler) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestHealthReportsQueueDepth(t *testing.T) {
	h := &Handler{inspector: fakeInspector{info: &asynq.QueueInfo{
		Queue: QueueDefault, Pending: 3, Active: 1, Scheduled: 2, Retry: 1,
	}}}
	rec := serveHealth(t, h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":1,"scheduled":2,"retry":1,"archived":0,"paused":false}`, rec.Body.String())
}

func TestHealthWithoutInspector(t *testing.T) {
	rec := serveHealth(t, NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":0`)
}

func TestHealthInspectorFailure(t *testing.T) {
	h := &Handler{inspector: fakeInspector{err: errors.New("redis down")}}
	rec := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Queue Unavailable")
}

func TestClientEnqueueRejectsUnknownTask(t *testing.T) {
	client, err := NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Enqueue(context.Background(), "ledger:nope")
	var unknown *UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ledger:nope", unknown.Name)
}
