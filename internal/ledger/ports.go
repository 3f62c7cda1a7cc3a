// Package ledger defines the ports through which the application reads and
// writes the three collections of the finance backend, and the snapshot
// loader that fetches them together.
package ledger

import (
	"context"
	"errors"

	"ledgerly/internal/core"
)

var (
	// ErrNotFound is returned by writers when the target record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps any failure to load a complete snapshot.
	ErrUnavailable = errors.New("ledger backend unavailable")
)

// Ports for outbound adapters.
type (
	ExpenseReader interface {
		ListExpenses(ctx context.Context) ([]core.RawTransaction, error)
	}

	RevenueReader interface {
		ListRevenues(ctx context.Context) ([]core.RawTransaction, error)
	}

	AccountReader interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	// Source is everything needed to build the month overview.
	Source interface {
		ExpenseReader
		RevenueReader
		AccountReader
	}

	// TransactionWriter persists transactions into the collection matching
	// their kind. Implementations assign ids on Create.
	TransactionWriter interface {
		Create(ctx context.Context, kind core.Kind, r core.RawTransaction) (core.RawTransaction, error)
		Update(ctx context.Context, kind core.Kind, r core.RawTransaction) (core.RawTransaction, error)
		Delete(ctx context.Context, kind core.Kind, id string) error
	}

	AccountWriter interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		UpdateAccount(ctx context.Context, a core.Account) (core.Account, error)
		DeleteAccount(ctx context.Context, id string) error
	}

	// Store is a full read/write backend.
	Store interface {
		Source
		TransactionWriter
		AccountWriter
	}
)

// readOnly exposes only the Source methods of whatever it wraps.
type readOnly struct{ Source }

// ReadOnly wraps src so that type assertions for TransactionWriter or
// AccountWriter fail, whatever src itself implements.
func ReadOnly(src Source) Source {
	return readOnly{src}
}
