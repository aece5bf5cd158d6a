package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	Description     string `json:"description" validate:"required,max=255"`
	Type            string `json:"type" validate:"required"`
	ParentID        *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Code            string `json:"code" validate:"omitempty,max=20"`
	AcceptsPostings *bool  `json:"accepts_postings"`
}

func (r createAccountRequest) input() AccountInput {
	return AccountInput{
		Description:     r.Description,
		Type:            AccountType(r.Type),
		ParentID:        r.ParentID,
		Code:            r.Code,
		AcceptsPostings: r.AcceptsPostings,
	}
}

// updateAccountRequest carries only the mutable fields; any other member in
// the body is rejected by the decoder.
type updateAccountRequest struct {
	Description     *string `json:"description" validate:"omitempty,max=255"`
	AcceptsPostings *bool   `json:"accepts_postings"`
	Active          *bool   `json:"active"`
}

func (r updateAccountRequest) update() AccountUpdate {
	return AccountUpdate{Description: r.Description, AcceptsPostings: r.AcceptsPostings, IsActive: r.Active}
}

type lineRequest struct {
	AccountID    int64           `json:"account_id" validate:"required,gt=0"`
	Side         string          `json:"side" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	CostCenterID *int64          `json:"cost_center_id" validate:"omitempty,gt=0"`
}

type postingRequest struct {
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	NarrativeID int64         `json:"narrative_id" validate:"required,gt=0"`
	Complement  string        `json:"complement" validate:"max=500"`
	BatchNumber string        `json:"batch_number" validate:"max=20"`
	PostedBy    int64         `json:"posted_by" validate:"gte=0"`
	SourceID    string        `json:"source_id" validate:"omitempty,uuid"`
	Lines       []lineRequest `json:"lines" validate:"dive"`
}

func (r postingRequest) input() (PostingInput, error) {
	if r.Date == "" {
		return PostingInput{}, invalid(ReasonMissingDate, "date", "date required")
	}
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return PostingInput{}, invalid(ReasonInvalidField, "date", "date must be YYYY-MM-DD")
	}
	in := PostingInput{
		Date:        date,
		NarrativeID: r.NarrativeID,
		Complement:  r.Complement,
		BatchNumber: r.BatchNumber,
		PostedBy:    r.PostedBy,
		Lines:       make([]LineInput, 0, len(r.Lines)),
	}
	if r.SourceID != "" {
		if in.SourceID, err = uuid.Parse(r.SourceID); err != nil {
			return PostingInput{}, invalid(ReasonInvalidField, "source_id", "source_id must be a UUID")
		}
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID:    l.AccountID,
			Side:         Side(l.Side),
			Amount:       l.Amount,
			CostCenterID: l.CostCenterID,
		})
	}
	return in, nil
}

type accountResponse struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Description     string    `json:"description"`
	Type            string    `json:"type"`
	Nature          string    `json:"nature"`
	Level           int       `json:"level"`
	ParentID        *int64    `json:"parent_id"`
	AcceptsPostings bool      `json:"accepts_postings"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Code:            a.Code,
		Description:     a.Description,
		Type:            string(a.Type),
		Nature:          string(a.Nature),
		Level:           a.Level,
		ParentID:        a.ParentID,
		AcceptsPostings: a.AcceptsPostings,
		Active:          a.IsActive,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAccountResponses(accounts []Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	return out
}

type treeNode struct {
	accountResponse
	Children []*treeNode `json:"children,omitempty"`
}

func toTreeNodes(tree *Tree, includeInactive bool) []*treeNode {
	filter := AccountFilter{IncludeInactive: includeInactive}
	var build func(accounts []Account) []*treeNode
	build = func(accounts []Account) []*treeNode {
		out := make([]*treeNode, 0, len(accounts))
		for _, a := range accounts {
			if !filter.Matches(a) {
				continue
			}
			out = append(out, &treeNode{accountResponse: toAccountResponse(a), Children: build(tree.Children(a.ID))})
		}
		return out
	}
	return build(tree.Roots())
}

type lineResponse struct {
	ID           int64  `json:"id"`
	AccountID    int64  `json:"account_id"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	CostCenterID *int64 `json:"cost_center_id,omitempty"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Date        string         `json:"date"`
	NarrativeID int64          `json:"narrative_id"`
	Complement  string         `json:"complement,omitempty"`
	BatchNumber string         `json:"batch_number,omitempty"`
	PostedBy    int64          `json:"posted_by,omitempty"`
	SourceID    string         `json:"source_id,omitempty"`
	Total       string         `json:"total"`
	Lines       []lineResponse `json:"lines"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	debit, _ := e.Totals()
	out := entryResponse{
		ID:          e.ID,
		Date:        e.Date.Format(dateLayout),
		NarrativeID: e.NarrativeID,
		Complement:  e.Complement,
		BatchNumber: e.BatchNumber,
		PostedBy:    e.PostedBy,
		Total:       debit.StringFixed(amountScale),
		Lines:       make([]lineResponse, 0, len(e.Lines)),
	}
	if e.SourceID != uuid.Nil {
		out.SourceID = e.SourceID.String()
	}
	for _, l := range e.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:           l.ID,
			AccountID:    l.AccountID,
			Side:         string(l.Side),
			Amount:       l.Amount.StringFixed(amountScale),
			CostCenterID: l.CostCenterID,
		})
	}
	return out
}

type balanceResponse struct {
	AccountID int64  `json:"account_id"`
	Code      string `json:"code"`
	Nature    string `json:"nature"`
	Debit     string `json:"debit_total"`
	Credit    string `json:"credit_total"`
	Net       string `json:"net_balance"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

func toBalanceResponse(b Balance) balanceResponse {
	out := balanceResponse{
		AccountID: b.AccountID,
		Code:      b.Code,
		Nature:    string(b.Nature),
		Debit:     b.DebitTotal.StringFixed(amountScale),
		Credit:    b.CreditTotal.StringFixed(amountScale),
		Net:       b.NetBalance.StringFixed(amountScale),
	}
	if !b.Range.From.IsZero() {
		out.From = b.Range.From.Format(dateLayout)
	}
	if !b.Range.To.IsZero() {
		out.To = b.Range.To.Format(dateLayout)
	}
	return out
}

type movementResponse struct {
	LineID       int64  `json:"line_id"`
	EntryID      int64  `json:"entry_id"`
	Date         string `json:"date"`
	NarrativeID  int64  `json:"narrative_id"`
	Complement   string `json:"complement,omitempty"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	CostCenterID *int64 `json:"cost_center_id,omitempty"`
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		LineID:       m.LineID,
		EntryID:      m.EntryID,
		Date:         m.Date.Format(dateLayout),
		NarrativeID:  m.NarrativeID,
		Complement:   m.Complement,
		Side:         string(m.Side),
		Amount:       m.Amount.StringFixed(amountScale),
		CostCenterID: m.CostCenterID,
	}
}
