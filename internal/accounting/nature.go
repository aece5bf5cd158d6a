package accounting

import "sort"

var natureByType = map[AccountType]Nature{
	AccountTypeAsset:     NatureDebit,
	AccountTypeExpense:   NatureDebit,
	AccountTypeLiability: NatureCredit,
	AccountTypeEquity:    NatureCredit,
	AccountTypeRevenue:   NatureCredit,
}

// NatureOf derives the nature of an account type. The second result is false
// for unknown types.
func NatureOf(t AccountType) (Nature, bool) {
	n, ok := natureByType[t]
	return n, ok
}

// ParseAccountType validates a raw account type string.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(raw)
	if _, ok := natureByType[t]; !ok {
		return "", invalid(ReasonInvalidAccountType, "type", "unknown account type %q", raw)
	}
	return t, nil
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
