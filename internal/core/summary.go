package core

import "time"

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Amount `json:"total"`
}

// DailyTotal holds revenue and expense sums for one UTC day.
type DailyTotal struct {
	Date    time.Time `json:"date"`
	Revenue Amount    `json:"revenue"`
	Expense Amount    `json:"expense"`
}

// MonthSummary is the compact view of one month's transactions.
type MonthSummary struct {
	Month             MonthKey        `json:"month"`
	Count             int             `json:"count"`
	TotalExpense      Amount          `json:"totalExpense"`
	TotalRevenue      Amount          `json:"totalRevenue"`
	Balance           Amount          `json:"balance"`
	ExpenseByCategory []CategoryTotal `json:"expenseByCategory"`
	RevenueByCategory []CategoryTotal `json:"revenueByCategory"`
	Daily             []DailyTotal    `json:"daily"`
}

// Positive reports whether the month closed with revenue >= expenses.
func (s MonthSummary) Positive() bool {
	return !s.Balance.Decimal.IsNegative()
}

// AccountActivity is the net effect of the transaction log on one account.
type AccountActivity struct {
	AccountID string `json:"accountId"`
	Expenses  Amount `json:"expenses"`
	Revenues  Amount `json:"revenues"`
	Net       Amount `json:"net"`
	Count     int    `json:"count"`
}
