package overview

import (
	"sort"
	"strings"

	"ledgerly/internal/core"
)

// All is the sentinel that disables the category and type predicates.
const All = "All"

type SortOrder int

const (
	NewestFirst SortOrder = iota
	OldestFirst
)

// ParseSortOrder reads the sort select values. Anything unrecognised is
// NewestFirst.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oldest first", "oldest", "asc":
		return OldestFirst
	}
	return NewestFirst
}

func (o SortOrder) String() string {
	if o == OldestFirst {
		return "Oldest first"
	}
	return "Newest first"
}

// Filter narrows one month's transactions. The zero value matches
// everything, newest first.
type Filter struct {
	Category string
	Type     string
	Search   string
	Order    SortOrder
}

func (f Filter) matchCategory(tx core.Transaction) bool {
	return f.Category == "" || f.Category == All || tx.Category == f.Category
}

func (f Filter) matchType(tx core.Transaction) bool {
	return f.Type == "" || f.Type == All || strings.EqualFold(f.Type, string(tx.Kind))
}

func (f Filter) matchSearch(tx core.Transaction) bool {
	return strings.Contains(strings.ToLower(tx.Title), strings.ToLower(f.Search))
}

// Match reports whether tx passes all three predicates.
func (f Filter) Match(tx core.Transaction) bool {
	return f.matchCategory(tx) && f.matchType(tx) && f.matchSearch(tx)
}

// ApplyFilter returns a new slice with the matching transactions sorted in
// the requested order. txs is left untouched.
func ApplyFilter(txs []core.Transaction, f Filter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	SortTransactions(out, f.Order)
	return out
}

// Categories lists the distinct non-empty categories in txs, sorted.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tx := range txs {
		if tx.Category == "" {
			continue
		}
		if _, ok := seen[tx.Category]; ok {
			continue
		}
		seen[tx.Category] = struct{}{}
		out = append(out, tx.Category)
	}
	sort.Strings(out)
	return out
}

// TypeOptions are the values offered by the type select.
func TypeOptions() []string {
	return []string{All, core.Expense.Label(), core.Revenue.Label()}
}

// SortOptions are the values offered by the sort select.
func SortOptions() []string {
	return []string{NewestFirst.String(), OldestFirst.String()}
}
