package accounting

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	maxDescriptionLength = 255
	maxSuggestAttempts   = 3
)

// Catalog owns the chart of accounts: code derivation, write-once fields and
// dependency checks on deactivation.
type Catalog struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewCatalog constructs the account catalog.
func NewCatalog(repo RepositoryPort) *Catalog {
	return &Catalog{repo: repo, now: time.Now}
}

// CreateAccount validates and persists a new account. The code is suggested
// from siblings unless in.Code is set, in which case it is validated as given.
func (c *Catalog) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return Account{}, invalid(ReasonMissingDescription, "description", "description required")
	}
	if len(desc) > maxDescriptionLength {
		return Account{}, invalid(ReasonFieldTooLong, "description", "description exceeds %d characters", maxDescriptionLength)
	}
	nature, ok := NatureOf(in.Type)
	if !ok {
		return Account{}, invalid(ReasonInvalidAccountType, "type", "unknown account type %q", in.Type)
	}
	explicit := strings.TrimSpace(in.Code)
	if explicit != "" {
		if err := ValidateCode(explicit); err != nil {
			return Account{}, err
		}
	}
	accepts := true
	if in.AcceptsPostings != nil {
		accepts = *in.AcceptsPostings
	}

	var created Account
	create := func(ctx context.Context, tx TxRepository) error {
		var parent *Account
		if in.ParentID != nil {
			locked, err := tx.LockAccounts(ctx, []int64{*in.ParentID})
			if err != nil {
				return err
			}
			p, ok := locked[*in.ParentID]
			if !ok {
				return invalid(ReasonParentNotFound, "parent_id", "parent account %d not found", *in.ParentID)
			}
			if !p.IsActive {
				return invalid(ReasonParentInactive, "parent_id", "parent account %s is inactive", p.Code)
			}
			parent = &p
		}
		code := explicit
		if code == "" {
			suggested, err := suggest(ctx, tx, parent)
			if err != nil {
				return err
			}
			code = suggested
		}
		if err := checkCodePlacement(code, parent); err != nil {
			return err
		}
		now := c.now()
		acc := Account{
			Code:            code,
			Description:     desc,
			Type:            in.Type,
			Nature:          nature,
			Level:           CodeLevel(code),
			AcceptsPostings: accepts,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if parent != nil {
			pid := parent.ID
			acc.ParentID = &pid
		}
		inserted, err := tx.InsertAccount(ctx, acc)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	}
	// A suggested code can lose the race to a concurrent create that read the
	// same siblings; the next attempt sees the committed sibling.
	attempts := 1
	if explicit == "" {
		attempts = maxSuggestAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.repo.WithTx(ctx, create); err == nil || !errors.Is(err, ErrConflict) {
			break
		}
	}
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// UpdateAccount applies changes to the mutable fields. Deactivation through
// an update runs the same dependency checks as DeactivateAccount.
func (c *Catalog) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (Account, error) {
	var desc string
	if upd.Description != nil {
		desc = strings.TrimSpace(*upd.Description)
		if desc == "" {
			return Account{}, invalid(ReasonMissingDescription, "description", "description cannot be blank")
		}
		if len(desc) > maxDescriptionLength {
			return Account{}, invalid(ReasonFieldTooLong, "description", "description exceeds %d characters", maxDescriptionLength)
		}
	}
	var updated Account
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockAccounts(ctx, []int64{id})
		if err != nil {
			return err
		}
		acc, ok := locked[id]
		if !ok {
			return accountNotFound(id)
		}
		if upd.IsEmpty() {
			updated = acc
			return nil
		}
		if upd.Description != nil {
			acc.Description = desc
		}
		if upd.AcceptsPostings != nil {
			acc.AcceptsPostings = *upd.AcceptsPostings
		}
		if upd.IsActive != nil && *upd.IsActive != acc.IsActive {
			if *upd.IsActive {
				if err := ensureParentActive(ctx, tx, acc); err != nil {
					return err
				}
			} else if err := ensureDeactivatable(ctx, tx, acc); err != nil {
				return err
			}
			acc.IsActive = *upd.IsActive
		}
		acc.UpdatedAt = c.now()
		saved, err := tx.UpdateAccount(ctx, acc)
		if err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

// DeactivateAccount soft-deletes an account with no postings and no active
// children. Deactivating an inactive account is a no-op.
func (c *Catalog) DeactivateAccount(ctx context.Context, id int64) (Account, error) {
	inactive := false
	return c.UpdateAccount(ctx, id, AccountUpdate{IsActive: &inactive})
}

// GetAccount loads an account by id.
func (c *Catalog) GetAccount(ctx context.Context, id int64) (Account, error) {
	var acc Account
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// GetAccountByCode loads an account by its code.
func (c *Catalog) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	var acc Account
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acc, err = tx.GetAccountByCode(ctx, strings.TrimSpace(code))
		return err
	})
	return acc, err
}

// ListAccounts returns accounts in code order matching the filter.
func (c *Catalog) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	tree, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, tree.Len())
	for _, acc := range tree.Accounts() {
		if filter.Matches(acc) {
			out = append(out, acc)
		}
	}
	return out, nil
}

// ListPostable returns the accounts new journal lines may reference.
func (c *Catalog) ListPostable(ctx context.Context) ([]Account, error) {
	return c.ListAccounts(ctx, AccountFilter{PostableOnly: true})
}

// ListChildren returns the direct children of parentID, or the roots when
// parentID is nil. Inactive children are included only when requested.
func (c *Catalog) ListChildren(ctx context.Context, parentID *int64, includeInactive bool) ([]Account, error) {
	tree, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	var nodes []Account
	if parentID == nil {
		nodes = tree.Roots()
	} else {
		if _, ok := tree.Get(*parentID); !ok {
			return nil, accountNotFound(*parentID)
		}
		nodes = tree.Children(*parentID)
	}
	filter := AccountFilter{IncludeInactive: includeInactive}
	out := make([]Account, 0, len(nodes))
	for _, acc := range nodes {
		if filter.Matches(acc) {
			out = append(out, acc)
		}
	}
	return out, nil
}

// IsDescendantOf reports whether account a sits strictly below account b.
func (c *Catalog) IsDescendantOf(ctx context.Context, a, b int64) (bool, error) {
	tree, err := c.Tree(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := tree.Get(a); !ok {
		return false, accountNotFound(a)
	}
	if _, ok := tree.Get(b); !ok {
		return false, accountNotFound(b)
	}
	return tree.IsDescendantOf(a, b), nil
}

// SuggestCode returns the code CreateAccount would assign under parentID.
func (c *Catalog) SuggestCode(ctx context.Context, parentID *int64) (string, error) {
	var code string
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var parent *Account
		if parentID != nil {
			p, err := tx.GetAccount(ctx, *parentID)
			if err != nil {
				return err
			}
			parent = &p
		}
		var err error
		code, err = suggest(ctx, tx, parent)
		return err
	})
	return code, err
}

// Tree loads the whole chart of accounts as an arena.
func (c *Catalog) Tree(ctx context.Context) (*Tree, error) {
	var accounts []Account
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return NewTree(accounts), nil
}

func suggest(ctx context.Context, tx TxRepository, parent *Account) (string, error) {
	var parentID *int64
	parentCode := ""
	if parent != nil {
		id := parent.ID
		parentID = &id
		parentCode = parent.Code
	}
	siblings, err := tx.ListChildCodes(ctx, parentID)
	if err != nil {
		return "", err
	}
	return NextCode(parentCode, siblings), nil
}

func ensureDeactivatable(ctx context.Context, tx TxRepository, acc Account) error {
	lines, err := tx.CountLines(ctx, acc.ID)
	if err != nil {
		return err
	}
	if lines > 0 {
		return &ConstraintError{Reason: ReasonHasPostings, Detail: "account " + acc.Code + " has committed journal lines"}
	}
	children, err := tx.CountActiveChildren(ctx, acc.ID)
	if err != nil {
		return err
	}
	if children > 0 {
		return &ConstraintError{Reason: ReasonHasActiveChildren, Detail: "account " + acc.Code + " has active child accounts"}
	}
	return nil
}

func ensureParentActive(ctx context.Context, tx TxRepository, acc Account) error {
	if acc.ParentID == nil {
		return nil
	}
	locked, err := tx.LockAccounts(ctx, []int64{*acc.ParentID})
	if err != nil {
		return err
	}
	parent, ok := locked[*acc.ParentID]
	if !ok || !parent.IsActive {
		return &ConstraintError{Reason: ReasonParentInactive, Detail: "parent of account " + acc.Code + " is inactive"}
	}
	return nil
}
