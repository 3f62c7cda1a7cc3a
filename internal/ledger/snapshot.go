package ledger

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerly/internal/core"
)

// Snapshot is one consistent read of the three collections.
type Snapshot struct {
	Expenses  []core.RawTransaction
	Revenues  []core.RawTransaction
	Accounts  []core.Account
	FetchedAt time.Time
}

// LoadSnapshot fetches expenses, revenues and accounts in parallel. Either
// all three succeed or no snapshot is returned; the error wraps
// ErrUnavailable and the first failure.
func LoadSnapshot(ctx context.Context, src Source) (*Snapshot, error) {
	var s Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := src.ListExpenses(gctx)
		if err != nil {
			return fmt.Errorf("expenses: %w", err)
		}
		s.Expenses = list
		return nil
	})
	g.Go(func() error {
		list, err := src.ListRevenues(gctx)
		if err != nil {
			return fmt.Errorf("revenues: %w", err)
		}
		s.Revenues = list
		return nil
	})
	g.Go(func() error {
		list, err := src.ListAccounts(gctx)
		if err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
		s.Accounts = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.FetchedAt = time.Now().UTC()
	return &s, nil
}

// Version identifies the snapshot for memoization.
func (s *Snapshot) Version() int64 {
	return s.FetchedAt.UnixNano()
}

// Account looks up an account by id.
func (s *Snapshot) Account(id string) (core.Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return core.Account{}, false
}
