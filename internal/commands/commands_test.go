package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger/memory"
)

func writeDB(t *testing.T, db memory.Database) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	data, err := json.Marshal(db)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sampleDB() memory.Database {
	return memory.Database{
		Expenses: []core.RawTransaction{
			{ID: "e1", AccountID: "a1", Title: "Groceries", Amount: core.NewAmount(40), Category: "Food", CreatedAt: "2026-02-10T10:00:00.000Z"},
		},
		Revenues: []core.RawTransaction{
			{ID: "r1", AccountID: "a1", Title: "Salary", Amount: core.NewAmount(1500), Category: "Work", CreatedAt: "2026-02-01T09:00:00.000Z"},
			{ID: "r2", AccountID: "a1", Title: "Refund", Amount: core.NewAmount(20), Category: "Other", CreatedAt: "2026-01-15T09:00:00.000Z"},
		},
		Accounts: []core.Account{
			{ID: "a1", Name: "Checking", Type: core.Bank, Balance: core.NewAmount(1000), Currency: "EUR"},
		},
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestOverviewCommand(t *testing.T) {
	path := writeDB(t, sampleDB())

	out, err := run(t, "--backend", "memory", "--data", path, "overview")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "MONTH"))
	assert.True(t, strings.HasPrefix(lines[1], "2026-02"), "newest month first: %q", lines[1])
	assert.Contains(t, lines[1], "1,460.00")
	assert.True(t, strings.HasPrefix(lines[2], "2026-01"))
}

func TestOverviewCommandJSON(t *testing.T) {
	path := writeDB(t, sampleDB())

	out, err := run(t, "--backend", "memory", "--data", path, "--json", "overview")
	require.NoError(t, err)

	var sums []core.MonthSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sums))
	require.Len(t, sums, 2)
	assert.Equal(t, "2026-02", sums[0].Month.String())
	assert.Equal(t, 2, sums[0].Count)
}

func TestMonthCommand(t *testing.T) {
	path := writeDB(t, sampleDB())

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"whole month", []string{"2026-02"}, []string{"February 2026", "Groceries", "Salary", "2 of 2"}, nil},
		{"revenues only", []string{"2026-02", "--type", "Revenue"}, []string{"Salary", "1 of 2"}, []string{"Groceries"}},
		{"search", []string{"2026-02", "--search", "groc"}, []string{"Groceries", "-40.00"}, []string{"Salary"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--backend", "memory", "--data", path, "month"}, tt.args...)
			out, err := run(t, args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}

	t.Run("oldest first", func(t *testing.T) {
		out, err := run(t, "--backend", "memory", "--data", path, "month", "2026-02", "--sort", "Oldest first")
		require.NoError(t, err)
		assert.Less(t, strings.Index(out, "Salary"), strings.Index(out, "Groceries"))
	})
}

func TestMonthCommandErrors(t *testing.T) {
	path := writeDB(t, sampleDB())

	_, err := run(t, "--backend", "memory", "--data", path, "month", "2025-07")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month not found")

	_, err = run(t, "--backend", "memory", "--data", path, "month", "july")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid month key")

	_, err = run(t, "--backend", "carrier-pigeon", "overview")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestAccountsCommand(t *testing.T) {
	path := writeDB(t, sampleDB())

	out, err := run(t, "--backend", "memory", "--data", path, "accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "Checking")
	assert.Contains(t, out, "1,480.00")
}

func TestOverviewCommandGeneratedLedger(t *testing.T) {
	faker := gofakeit.New(42)
	db := memory.Database{Accounts: []core.Account{{ID: "a1", Name: "Main", Type: core.Bank, Currency: "EUR"}}}
	for i := 0; i < 50; i++ {
		db.Expenses = append(db.Expenses, core.RawTransaction{
			ID:        faker.UUID(),
			AccountID: "a1",
			Title:     faker.ProductName(),
			Amount:    core.NewAmount(faker.Price(1, 200)),
			Category:  faker.RandomString([]string{"Food", "Transport", "Home"}),
			CreatedAt: core.FormatTimestamp(faker.DateRange(
				mustTime(t, "2025-01-01T00:00:00Z"), mustTime(t, "2025-12-31T23:59:59Z"))),
		})
	}
	path := writeDB(t, db)

	out, err := run(t, "--backend", "memory", "--data", path, "--json", "overview")
	require.NoError(t, err)

	var sums []core.MonthSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sums))
	total := 0
	for i, s := range sums {
		total += s.Count
		if i > 0 {
			assert.True(t, s.Month.Before(sums[i-1].Month), "months must be newest first")
		}
	}
	assert.Equal(t, 50, total)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := core.ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}
