package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

// Identity is an account as every store addresses it: newer stores by the
// canonical id, the follower store by Instagram numeric user ids.
type Identity struct {
	CanonicalID uuid.UUID
	Username    string
	PageID      string
	// LegacyIDs lists numeric ids, primary first.
	LegacyIDs []int64
}

func (i Identity) PrimaryLegacyID() (int64, bool) {
	if len(i.LegacyIDs) == 0 {
		return 0, false
	}
	return i.LegacyIDs[0], true
}

type AccountStore interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (database.Account, error)
	GetAccountByIgUserID(ctx context.Context, igUserID int64) (database.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (database.Account, error)
	GetAccountByLegacyID(ctx context.Context, legacyID int64) (database.Account, error)
	ListAccountLegacyIDs(ctx context.Context, accountID uuid.UUID) ([]int64, error)
}

type Resolver struct {
	store AccountStore
}

func NewResolver(store AccountStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve accepts a canonical uuid, a numeric Instagram/legacy id, or a
// username (optionally prefixed with @).
func (r *Resolver) Resolve(ctx context.Context, hint string) (Identity, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return Identity{}, fmt.Errorf("empty account hint: %w", ErrAccountNotFound)
	}

	account, err := r.lookup(ctx, hint)
	if err != nil {
		if database.IsNotFound(err) {
			return Identity{}, fmt.Errorf("account %q: %w", hint, ErrAccountNotFound)
		}
		return Identity{}, err
	}
	return r.build(ctx, account)
}

func (r *Resolver) lookup(ctx context.Context, hint string) (database.Account, error) {
	if id, err := uuid.Parse(hint); err == nil {
		return r.store.GetAccountByID(ctx, id)
	}
	if n, err := strconv.ParseInt(hint, 10, 64); err == nil && n > 0 {
		a, err := r.store.GetAccountByIgUserID(ctx, n)
		if err == nil || !database.IsNotFound(err) {
			return a, err
		}
		return r.store.GetAccountByLegacyID(ctx, n)
	}
	return r.store.GetAccountByUsername(ctx, strings.TrimPrefix(hint, "@"))
}

func (r *Resolver) build(ctx context.Context, a database.Account) (Identity, error) {
	legacy, err := r.store.ListAccountLegacyIDs(ctx, a.ID)
	if err != nil {
		return Identity{}, err
	}
	ids := make([]int64, 0, len(legacy)+1)
	if a.IgUserID > 0 {
		ids = append(ids, a.IgUserID)
	}
	for _, id := range legacy {
		if id != a.IgUserID {
			ids = append(ids, id)
		}
	}
	return Identity{
		CanonicalID: a.ID,
		Username:    a.Username,
		PageID:      a.PageID,
		LegacyIDs:   ids,
	}, nil
}
