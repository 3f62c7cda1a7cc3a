package google

import (
	"ledgerly/internal/core"
)

var (
	summaryHeader  = []any{"Month", "Transactions", "Revenue", "Expense", "Balance"}
	categoryHeader = []any{"Month", "Type", "Category", "Total"}
)

// summaryRows lays out one row per month below a header row.
func summaryRows(months []core.MonthSummary) [][]any {
	rows := make([][]any, 0, len(months)+1)
	rows = append(rows, summaryHeader)
	for _, m := range months {
		rows = append(rows, []any{
			m.Month.String(),
			m.Count,
			m.TotalRevenue.InexactFloat64(),
			m.TotalExpense.InexactFloat64(),
			m.Balance.InexactFloat64(),
		})
	}
	return rows
}

// categoryRows lays out the per-category breakdowns, revenues before
// expenses within each month.
func categoryRows(months []core.MonthSummary) [][]any {
	rows := [][]any{categoryHeader}
	for _, m := range months {
		for _, c := range m.RevenueByCategory {
			rows = append(rows, []any{m.Month.String(), core.Revenue.Label(), c.Category, c.Total.InexactFloat64()})
		}
		for _, c := range m.ExpenseByCategory {
			rows = append(rows, []any{m.Month.String(), core.Expense.Label(), c.Category, c.Total.InexactFloat64()})
		}
	}
	return rows
}
