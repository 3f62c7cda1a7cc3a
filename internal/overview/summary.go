package overview

import (
	"sort"
	"time"

	"ledgerly/internal/core"
)

// OtherCategory collects transactions without a category.
const OtherCategory = "Other"

// Summarize computes totals, balance, category breakdowns and the daily
// series for one bucket. Category breakdowns keep the order in which each
// category first appears in the bucket.
func Summarize(b MonthBucket) core.MonthSummary {
	s := core.MonthSummary{Month: b.Key, Count: len(b.Transactions)}

	expIdx := map[string]int{}
	revIdx := map[string]int{}
	days := map[time.Time]*core.DailyTotal{}

	for _, tx := range b.Transactions {
		cat := tx.Category
		if cat == "" {
			cat = OtherCategory
		}
		day := time.Date(tx.Timestamp.Year(), tx.Timestamp.Month(), tx.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := days[day]
		if !ok {
			d = &core.DailyTotal{Date: day}
			days[day] = d
		}

		switch tx.Kind {
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
			s.ExpenseByCategory = addCategory(s.ExpenseByCategory, expIdx, cat, tx.Amount)
			d.Expense = d.Expense.Add(tx.Amount)
		case core.Revenue:
			s.TotalRevenue = s.TotalRevenue.Add(tx.Amount)
			s.RevenueByCategory = addCategory(s.RevenueByCategory, revIdx, cat, tx.Amount)
			d.Revenue = d.Revenue.Add(tx.Amount)
		}
	}
	s.Balance = s.TotalRevenue.Sub(s.TotalExpense)

	s.Daily = make([]core.DailyTotal, 0, len(days))
	for _, d := range days {
		s.Daily = append(s.Daily, *d)
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Date.Before(s.Daily[j].Date) })
	return s
}

// SummarizeAll summarizes every bucket, in overview order.
func SummarizeAll(o MonthOverview) []core.MonthSummary {
	out := make([]core.MonthSummary, len(o.Months))
	for i, m := range o.Months {
		out[i] = Summarize(m)
	}
	return out
}

func addCategory(list []core.CategoryTotal, idx map[string]int, cat string, amt core.Amount) []core.CategoryTotal {
	if i, ok := idx[cat]; ok {
		list[i].Total = list[i].Total.Add(amt)
		return list
	}
	idx[cat] = len(list)
	return append(list, core.CategoryTotal{Category: cat, Total: amt})
}

// AccountActivityFor derives each account's net flow from the transaction
// log: revenues minus expenses. Result is sorted by account id.
func AccountActivityFor(o MonthOverview) []core.AccountActivity {
	byID := map[string]*core.AccountActivity{}
	for _, m := range o.Months {
		for _, tx := range m.Transactions {
			a, ok := byID[tx.AccountID]
			if !ok {
				a = &core.AccountActivity{AccountID: tx.AccountID}
				byID[tx.AccountID] = a
			}
			a.Count++
			if tx.Kind == core.Expense {
				a.Expenses = a.Expenses.Add(tx.Amount)
			} else {
				a.Revenues = a.Revenues.Add(tx.Amount)
			}
		}
	}
	out := make([]core.AccountActivity, 0, len(byID))
	for _, a := range byID {
		a.Net = a.Revenues.Sub(a.Expenses)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// ForAccount restricts the overview to one account, dropping months where
// the account has no transactions.
func ForAccount(o MonthOverview, accountID string) []MonthBucket {
	var out []MonthBucket
	for _, m := range o.Months {
		var txs []core.Transaction
		for _, tx := range m.Transactions {
			if tx.AccountID == accountID {
				txs = append(txs, tx)
			}
		}
		if len(txs) > 0 {
			out = append(out, MonthBucket{Key: m.Key, Transactions: txs})
		}
	}
	return out
}
