package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerly/internal/core"
)

type fakeSource struct {
	expenses, revenues []core.RawTransaction
	accounts           []core.Account
	failOn             string
	calls              atomic.Int32
}

var errBoom = errors.New("boom")

func (f *fakeSource) ListExpenses(ctx context.Context) ([]core.RawTransaction, error) {
	f.calls.Add(1)
	if f.failOn == "expenses" {
		return nil, errBoom
	}
	return f.expenses, nil
}

func (f *fakeSource) ListRevenues(ctx context.Context) ([]core.RawTransaction, error) {
	f.calls.Add(1)
	if f.failOn == "revenues" {
		return nil, errBoom
	}
	return f.revenues, nil
}

func (f *fakeSource) ListAccounts(ctx context.Context) ([]core.Account, error) {
	f.calls.Add(1)
	if f.failOn == "accounts" {
		return nil, errBoom
	}
	return f.accounts, nil
}

func TestLoadSnapshot(t *testing.T) {
	src := &fakeSource{
		expenses: []core.RawTransaction{{ID: "e1"}},
		revenues: []core.RawTransaction{{ID: "r1"}, {ID: "r2"}},
		accounts: []core.Account{{ID: "a1", Name: "Checking"}},
	}
	snap, err := LoadSnapshot(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, snap.Expenses, 1)
	assert.Len(t, snap.Revenues, 2)
	assert.EqualValues(t, 3, src.calls.Load())
	assert.False(t, snap.FetchedAt.IsZero())

	acc, ok := snap.Account("a1")
	assert.True(t, ok)
	assert.Equal(t, "Checking", acc.Name)
	_, ok = snap.Account("nope")
	assert.False(t, ok)
}

func TestLoadSnapshotAllOrNothing(t *testing.T) {
	for _, which := range []string{"expenses", "revenues", "accounts"} {
		t.Run(which, func(t *testing.T) {
			src := &fakeSource{
				expenses: []core.RawTransaction{{ID: "e1"}},
				failOn:   which,
			}
			snap, err := LoadSnapshot(context.Background(), src)
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.ErrorIs(t, err, errBoom)
			assert.Contains(t, err.Error(), which)
		})
	}
}
