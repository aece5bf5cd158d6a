package accounting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts", h.createAccount)
		r.Get("/accounts/tree", h.accountTree)
		r.Get("/accounts/suggest-code", h.suggestCode)
		r.Get("/accounts/by-code/{code}", h.getAccountByCode)
		r.Get("/accounts/{id}", h.getAccount)
		r.Patch("/accounts/{id}", h.updateAccount)
		r.Delete("/accounts/{id}", h.deactivateAccount)
		r.Get("/accounts/{id}/children", h.listChildren)
		r.Get("/accounts/{id}/balance", h.getBalance)
		r.Get("/accounts/{id}/movements", h.movements)
		r.Get("/balances", h.listBalances)
		r.Get("/entries", h.listEntries)
		r.Post("/entries", h.postEntry)
		r.Get("/entries/{id}", h.getEntry)
		r.Put("/entries/{id}", h.amendEntry)
		r.Delete("/entries/{id}", h.voidEntry)
		r.Get("/integrity", h.integrity)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AccountFilter{
		IncludeInactive: q.Get("include_inactive") == "true",
		PostableOnly:    q.Get("postable") == "true",
		Type:            AccountType(q.Get("type")),
	}
	accounts, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": toAccountResponses(accounts)})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.service.CreateAccount(r.Context(), req.input())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (h *Handler) accountTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.AccountTree(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roots": toTreeNodes(tree, r.URL.Query().Get("include_inactive") == "true")})
}

func (h *Handler) suggestCode(w http.ResponseWriter, r *http.Request) {
	var parentID *int64
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid parent_id")
			return
		}
		parentID = &id
	}
	code, err := h.service.SuggestCode(r.Context(), parentID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) getAccountByCode(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.GetAccountByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.service.UpdateAccount(r.Context(), id, req.update())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.service.DeactivateAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	children, err := h.service.ListChildren(r.Context(), &id, r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": toAccountResponses(children)})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rng, ok := queryRange(w, r)
	if !ok {
		return
	}
	bal, err := h.service.GetBalance(r.Context(), id, rng)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(bal))
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	moves, err := h.service.AccountMovements(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]movementResponse, 0, len(moves))
	for _, m := range moves {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	rng, ok := queryRange(w, r)
	if !ok {
		return
	}
	balances, err := h.service.GetBalances(r.Context(), rng)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, toBalanceResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	rng, ok := queryRange(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	accountID, _ := strconv.ParseInt(q.Get("account_id"), 10, 64)
	entries, pagination, err := h.service.ListEntries(r.Context(), EntryFilter{
		Range:       rng,
		BatchNumber: q.Get("batch"),
		AccountID:   accountID,
		Page:        page,
		PerPage:     perPage,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":     out,
		"page":        pagination.Page,
		"per_page":    pagination.PerPage,
		"total":       pagination.Total,
		"total_pages": pagination.TotalPages,
		"has_next":    pagination.HasNext(),
	})
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	entry, err := h.service.PostEntry(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) amendEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	entry, err := h.service.AmendEntry(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) voidEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.VoidEntry(r.Context(), id, actor); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CheckIntegrity(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	issues := make([]map[string]any, 0, len(report.Issues))
	for _, is := range report.Issues {
		issues = append(issues, map[string]any{
			"kind":      is.Kind,
			"entity":    is.Entity,
			"entity_id": is.EntityID,
			"detail":    is.Detail,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":               report.OK(),
		"entries_checked":  report.EntriesChecked,
		"accounts_checked": report.AccountsChecked,
		"issues":           issues,
	})
}

func (h *Handler) decodePosting(w http.ResponseWriter, r *http.Request) (PostingInput, bool) {
	var req postingRequest
	if !h.decode(w, r, &req) {
		return PostingInput{}, false
	}
	in, err := req.input()
	if err != nil {
		h.respondError(w, r, err)
		return PostingInput{}, false
	}
	return in, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			httpx.WriteProblem(w, httpx.ProblemDetail{
				Title:  "Validation Failed",
				Status: http.StatusBadRequest,
				Detail: verrs[0].Error(),
				Field:  verrs[0].Namespace(),
			})
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// respondError maps the domain taxonomy to problem responses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *ValidationError
		cerr *ConstraintError
	)
	switch {
	case errors.As(err, &verr):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title: "Validation Failed", Status: http.StatusBadRequest,
			Detail: verr.Detail, Code: string(verr.Reason), Field: verr.Field,
		})
	case errors.As(err, &cerr):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title: "Constraint Violated", Status: http.StatusUnprocessableEntity,
			Detail: cerr.Detail, Code: string(cerr.Reason),
		})
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func queryRange(w http.ResponseWriter, r *http.Request) (DateRange, bool) {
	var rng DateRange
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.WriteProblem(w, httpx.ProblemDetail{
				Title: "Validation Failed", Status: http.StatusBadRequest,
				Detail: p.name + " must be YYYY-MM-DD", Code: string(ReasonInvalidField), Field: p.name,
			})
			return DateRange{}, false
		}
		*p.dst = t
	}
	return rng, true
}
