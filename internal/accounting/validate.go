package accounting

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	maxBatchNumberLength = 20
	maxComplementLength  = 500
	amountScale          = 2
)

// maxAmount is the exclusive upper bound of a NUMERIC(15,2) column.
var maxAmount = decimal.New(1, 13)

// validateShape runs the checks that need no stored state: line count, sides
// and header fields.
func validateShape(in PostingInput) error {
	if in.Date.IsZero() {
		return invalid(ReasonMissingDate, "date", "entry date required")
	}
	if in.NarrativeID <= 0 {
		return invalid(ReasonUnknownNarrative, "narrative_id", "narrative required")
	}
	if len(in.BatchNumber) > maxBatchNumberLength {
		return invalid(ReasonFieldTooLong, "batch_number", "batch number exceeds %d characters", maxBatchNumberLength)
	}
	if len(in.Complement) > maxComplementLength {
		return invalid(ReasonFieldTooLong, "complement", "complement exceeds %d characters", maxComplementLength)
	}
	if len(in.Lines) < 2 {
		return invalid(ReasonTooFewLines, "lines", "entry requires at least two lines, got %d", len(in.Lines))
	}
	var debit, credit bool
	for i, line := range in.Lines {
		switch line.Side {
		case SideDebit:
			debit = true
		case SideCredit:
			credit = true
		default:
			return invalid(ReasonInvalidSide, lineField(i, "side"), "side %q is neither DEBIT nor CREDIT", line.Side)
		}
	}
	if !debit || !credit {
		return invalid(ReasonMissingSide, "lines", "entry requires at least one debit and one credit line")
	}
	return nil
}

// validateAccounts checks every referenced account is active and postable.
// accounts must hold the rows locked for this commit.
func validateAccounts(in PostingInput, accounts map[int64]Account) error {
	for i, line := range in.Lines {
		acc, ok := accounts[line.AccountID]
		if !ok {
			return invalid(ReasonUnknownAccount, lineField(i, "account_id"), "account %d not found", line.AccountID)
		}
		if !acc.IsActive {
			return invalid(ReasonInactiveAccount, lineField(i, "account_id"), "account %s is inactive", acc.Code)
		}
		if !acc.AcceptsPostings {
			return invalid(ReasonNotPostable, lineField(i, "account_id"), "account %s does not accept postings", acc.Code)
		}
	}
	return nil
}

// validateAmounts rejects non-positive amounts and amounts that would not
// survive the two-decimal storage scale unchanged.
func validateAmounts(in PostingInput) error {
	for i, line := range in.Lines {
		if !line.Amount.IsPositive() {
			return invalid(ReasonNonPositiveAmount, lineField(i, "amount"), "amount %s must be greater than zero", line.Amount.String())
		}
		if !line.Amount.Equal(line.Amount.Round(amountScale)) {
			return invalid(ReasonAmountPrecision, lineField(i, "amount"), "amount %s has more than %d decimal places", line.Amount.String(), amountScale)
		}
		if line.Amount.GreaterThanOrEqual(maxAmount) {
			return invalid(ReasonAmountPrecision, lineField(i, "amount"), "amount %s exceeds storage precision", line.Amount.String())
		}
	}
	return nil
}

// validateBalance compares debit and credit totals exactly.
func validateBalance(in PostingInput) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		if line.Side == SideDebit {
			debit = debit.Add(line.Amount)
		} else {
			credit = credit.Add(line.Amount)
		}
	}
	if !debit.Equal(credit) {
		return invalid(ReasonUnbalanced, "lines", "debit %s != credit %s", debit.StringFixed(amountScale), credit.StringFixed(amountScale))
	}
	return nil
}

// validateReferences checks the narrative and every cost center exist and
// are active.
func validateReferences(ctx context.Context, tx TxRepository, in PostingInput) error {
	ref, ok, err := tx.LookupReference(ctx, ReferenceNarrative, in.NarrativeID)
	if err != nil {
		return err
	}
	if !ok {
		return invalid(ReasonUnknownNarrative, "narrative_id", "narrative %d not found", in.NarrativeID)
	}
	if !ref.IsActive {
		return invalid(ReasonInactiveNarrative, "narrative_id", "narrative %s is inactive", ref.Code)
	}
	checked := make(map[int64]struct{})
	for i, line := range in.Lines {
		if line.CostCenterID == nil {
			continue
		}
		id := *line.CostCenterID
		if _, done := checked[id]; done {
			continue
		}
		checked[id] = struct{}{}
		ref, ok, err := tx.LookupReference(ctx, ReferenceCostCenter, id)
		if err != nil {
			return err
		}
		if !ok {
			return invalid(ReasonUnknownCostCenter, lineField(i, "cost_center_id"), "cost center %d not found", id)
		}
		if !ref.IsActive {
			return invalid(ReasonInactiveCostCenter, lineField(i, "cost_center_id"), "cost center %s is inactive", ref.Code)
		}
	}
	return nil
}

// validateCommit runs the checks that depend on locked state, in order:
// accounts, amounts, balance, references.
func validateCommit(ctx context.Context, tx TxRepository, in PostingInput, accounts map[int64]Account) error {
	if err := validateAccounts(in, accounts); err != nil {
		return err
	}
	if err := validateAmounts(in); err != nil {
		return err
	}
	if err := validateBalance(in); err != nil {
		return err
	}
	return validateReferences(ctx, tx, in)
}

func lineField(i int, name string) string {
	return "lines[" + strconv.Itoa(i) + "]." + name
}
