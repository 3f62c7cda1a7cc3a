package overview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerly/internal/core"
)

func februaryBucket(t *testing.T) []core.Transaction {
	t.Helper()
	ov := Build(
		[]core.RawTransaction{
			raw("e1", "Lunch", "Food", "2026-02-10T10:00:00Z", 50),
			raw("e2", "Groceries", "Food", "2026-02-03T08:00:00Z", 80),
			raw("e3", "Taxi", "", "2026-02-12T22:00:00Z", 20),
		},
		[]core.RawTransaction{
			raw("r1", "Salary", "Salary", "2026-02-01T09:00:00Z", 2000),
			raw("r2", "Sold lunchbox", "Sales", "2026-02-11T12:00:00Z", 5),
		},
	)
	require.Len(t, ov.Months, 1)
	return ov.Months[0].Transactions
}

func TestApplyFilter(t *testing.T) {
	txs := februaryBucket(t)

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"e3", "r2", "e1", "e2", "r1"}},
		{"all sentinels", Filter{Category: All, Type: All}, []string{"e3", "r2", "e1", "e2", "r1"}},
		{"oldest first", Filter{Category: All, Type: All, Order: OldestFirst}, []string{"r1", "e2", "e1", "r2", "e3"}},
		{"category", Filter{Category: "Food"}, []string{"e1", "e2"}},
		{"type lower case", Filter{Type: "revenue"}, []string{"r2", "r1"}},
		{"type title case", Filter{Type: "Expense"}, []string{"e3", "e1", "e2"}},
		{"search case insensitive", Filter{Search: "LUNCH"}, []string{"r2", "e1"}},
		{"combined", Filter{Category: "Food", Type: "Expense", Search: "gro"}, []string{"e2"}},
		{"no match", Filter{Category: "Food", Type: "Revenue"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(ApplyFilter(txs, tc.filter)))
		})
	}
}

func TestApplyFilterLeavesInputAlone(t *testing.T) {
	txs := februaryBucket(t)
	before := ids(txs)
	_ = ApplyFilter(txs, Filter{Order: OldestFirst})
	assert.Equal(t, before, ids(txs))
}

func TestParseSortOrder(t *testing.T) {
	for _, in := range []string{"Oldest first", "oldest", "ASC"} {
		assert.Equal(t, OldestFirst, ParseSortOrder(in), in)
	}
	for _, in := range []string{"Newest first", "desc", "", "whatever"} {
		assert.Equal(t, NewestFirst, ParseSortOrder(in), in)
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"Food", "Salary", "Sales"}, Categories(februaryBucket(t)))
	assert.Empty(t, Categories(nil))
	assert.Equal(t, []string{All, "Expense", "Revenue"}, TypeOptions())
}
