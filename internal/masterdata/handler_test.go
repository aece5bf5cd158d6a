package masterdata_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
)

func TestHandlerRoutes(t *testing.T) {
	router := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	masterdata.NewHandler(logger, masterdata.NewService(memstore.New())).MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/masterdata/narrative", strings.NewReader(`{"code":"SALE","description":"Sale"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created masterdata.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, masterdata.KindNarrative, created.Kind)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/masterdata/narrative", strings.NewReader(`{"code":"SALE","description":"Sale"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/masterdata/narrative", strings.NewReader(`{"code":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/narrative?search=sal", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Records []masterdata.Record `json:"records"`
		Total   int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/masterdata/narrative/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var off masterdata.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &off))
	assert.False(t, off.IsActive)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/branch", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
