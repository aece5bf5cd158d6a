package accounting_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func newLedgerServer(t *testing.T) (*httptest.Server, *ledgerFixture) {
	t.Helper()
	f := newFixture(t)
	router := chi.NewRouter()
	accounting.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc).MountRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, f
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHandlerCreateAndFetchAccount(t *testing.T) {
	srv, f := newLedgerServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/ledger/accounts",
		`{"description":"Petty cash","type":"ASSET","parent_id":`+strconv.FormatInt(*f.cash.ParentID, 10)+`}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "1.3", body["code"])
	assert.Equal(t, "DEBIT_NATURED", body["nature"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/by-code/1.3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Petty cash", body["description"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/suggest-code?parent_id="+strconv.FormatInt(*f.cash.ParentID, 10), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.4", body["code"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/tree", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	roots := body["roots"].([]any)
	require.Len(t, roots, 3)
	first := roots[0].(map[string]any)
	assert.Len(t, first["children"], 3)
}

func TestHandlerValidationProblems(t *testing.T) {
	srv, f := newLedgerServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/ledger/accounts", `{"description":"X","type":"COST"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "INVALID_ACCOUNT_TYPE", body["code"])
	assert.Equal(t, "type", body["field"])

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/ledger/accounts/"+strconv.FormatInt(f.cash.ID, 10), `{"code":"9"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/balances?from=2024-13-01", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "from", body["field"])
}

func TestHandlerPostingLifecycle(t *testing.T) {
	srv, f := newLedgerServer(t)
	cash := strconv.FormatInt(f.cash.ID, 10)
	sales := strconv.FormatInt(f.sales.ID, 10)
	narrative := strconv.FormatInt(f.narrative, 10)

	posting := `{"date":"2024-05-02","narrative_id":` + narrative + `,"source_id":"6f1d7a7e-3b1c-4f8a-9a51-0c4b8b7c2d11","lines":[
		{"account_id":` + cash + `,"side":"DEBIT","amount":"250.10"},
		{"account_id":` + sales + `,"side":"CREDIT","amount":"250.10"}]}`
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/ledger/entries", posting)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "250.10", body["total"])
	id := strconv.FormatInt(int64(body["id"].(float64)), 10)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/ledger/entries", posting)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	unbalanced := `{"date":"2024-05-02","narrative_id":` + narrative + `,"lines":[
		{"account_id":` + cash + `,"side":"DEBIT","amount":"10"},
		{"account_id":` + sales + `,"side":"CREDIT","amount":"9"}]}`
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/ledger/entries", unbalanced)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNBALANCED", body["code"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/"+cash+"/balance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "250.10", body["net_balance"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/accounts/"+cash+"/movements", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["movements"], 1)

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/ledger/accounts/"+cash, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "HAS_POSTINGS", body["code"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/entries?per_page=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/ledger/entries/"+id+"?actor_id=4", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ledger/integrity", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(0), body["entries_checked"])
}
