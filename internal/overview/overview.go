// Package overview turns the raw expense and revenue collections into the
// month-by-month view used by every page: transactions are tagged with their
// kind, bucketed by UTC calendar month, and sorted newest first.
//
// Everything here is a pure function of its inputs. Callers decide when to
// recompute and whether to memoize.
package overview

import (
	"errors"
	"slices"

	"ledgerly/internal/core"
)

var ErrMonthNotFound = errors.New("month not found")

// MonthBucket holds the transactions of one calendar month. It is never
// empty and is sorted newest first.
type MonthBucket struct {
	Key          core.MonthKey      `json:"month"`
	Transactions []core.Transaction `json:"transactions"`
}

// Quarantined is a record left out of the overview because its creation
// time could not be read.
type Quarantined struct {
	Kind   core.Kind           `json:"type"`
	Record core.RawTransaction `json:"record"`
	Reason string              `json:"reason"`
}

// MonthOverview is the ordered sequence of month buckets, newest month
// first, plus whatever had to be set aside.
type MonthOverview struct {
	Months      []MonthBucket `json:"months"`
	Quarantined []Quarantined `json:"quarantined,omitempty"`
}

// Normalize tags every expense and revenue with its kind and parses its
// creation time. Expenses come first, then revenues, each in input order.
// The inputs are not modified.
func Normalize(expenses, revenues []core.RawTransaction) ([]core.Transaction, []Quarantined) {
	out := make([]core.Transaction, 0, len(expenses)+len(revenues))
	var bad []Quarantined
	tag := func(records []core.RawTransaction, kind core.Kind) {
		for _, r := range records {
			if r.Invalid != "" {
				bad = append(bad, Quarantined{Kind: kind, Record: r, Reason: r.Invalid})
				continue
			}
			ts, err := core.ParseTimestamp(r.CreatedAt)
			if err != nil {
				bad = append(bad, Quarantined{Kind: kind, Record: r, Reason: err.Error()})
				continue
			}
			out = append(out, core.Tag(r, kind, ts))
		}
	}
	tag(expenses, core.Expense)
	tag(revenues, core.Revenue)
	return out, bad
}

// GroupByMonth buckets transactions by calendar month, keeping encounter
// order inside each bucket.
func GroupByMonth(txs []core.Transaction) map[core.MonthKey][]core.Transaction {
	groups := make(map[core.MonthKey][]core.Transaction)
	for _, tx := range txs {
		k := tx.Month()
		groups[k] = append(groups[k], tx)
	}
	return groups
}

// SortTransactions orders txs in place by creation time. Equal timestamps
// keep their relative order.
func SortTransactions(txs []core.Transaction, order SortOrder) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		c := a.Timestamp.Compare(b.Timestamp)
		if order == OldestFirst {
			return c
		}
		return -c
	})
}

// SortMonths orders buckets newest month first.
func SortMonths(buckets []MonthBucket) {
	slices.SortFunc(buckets, func(a, b MonthBucket) int {
		switch {
		case b.Key.Before(a.Key):
			return -1
		case a.Key.Before(b.Key):
			return 1
		}
		return 0
	})
}

// Build runs the whole pipeline.
func Build(expenses, revenues []core.RawTransaction) MonthOverview {
	txs, bad := Normalize(expenses, revenues)
	groups := GroupByMonth(txs)

	months := make([]MonthBucket, 0, len(groups))
	for k, list := range groups {
		SortTransactions(list, NewestFirst)
		months = append(months, MonthBucket{Key: k, Transactions: list})
	}
	SortMonths(months)

	return MonthOverview{Months: months, Quarantined: bad}
}

// Find returns the bucket for key.
func (o MonthOverview) Find(key core.MonthKey) (MonthBucket, error) {
	for _, m := range o.Months {
		if m.Key == key {
			return m, nil
		}
	}
	return MonthBucket{}, ErrMonthNotFound
}

// Count is the number of transactions across all buckets.
func (o MonthOverview) Count() int {
	n := 0
	for _, m := range o.Months {
		n += len(m.Transactions)
	}
	return n
}

// Keys lists the month keys in overview order.
func (o MonthOverview) Keys() []core.MonthKey {
	keys := make([]core.MonthKey, len(o.Months))
	for i, m := range o.Months {
		keys[i] = m.Key
	}
	return keys
}

// Latest returns up to n transactions from the head of the bucket.
func (b MonthBucket) Latest(n int) []core.Transaction {
	if n > len(b.Transactions) {
		n = len(b.Transactions)
	}
	return b.Transactions[:n]
}
