package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Revenue Kind = "revenue"
)

const (
	Bank       AccountType = "Bank"
	Savings    AccountType = "Savings"
	CreditCard AccountType = "Credit Card"
	Cash       AccountType = "Cash"
	Investment AccountType = "Investment"
	Wallet     AccountType = "Wallet"
)

type (
	// Kind tells which collection a transaction came from.
	Kind string

	AccountType string

	// RawTransaction is the record shape shared by the /expenses and
	// /revenues collections. Vendor and ReceiptURL are only set on expenses,
	// PayerName only on revenues.
	RawTransaction struct {
		ID         string `json:"id"`
		AccountID  string `json:"accountId"`
		Title      string `json:"title"`
		Amount     Amount `json:"amount"`
		Category   string `json:"category,omitempty"`
		Vendor     string `json:"vendor,omitempty"`
		PayerName  string `json:"payerName,omitempty"`
		Note       string `json:"note,omitempty"`
		ReceiptURL string `json:"receiptUrl,omitempty"`
		CreatedAt  string `json:"createdAt"`

		// Invalid is set by DecodeTransactions when the record on the wire
		// could not be decoded. Such records are quarantined, never bucketed.
		Invalid string `json:"-"`
	}

	// Transaction is a RawTransaction tagged with its kind and a parsed
	// creation time (always UTC).
	Transaction struct {
		RawTransaction
		Kind      Kind      `json:"type"`
		Timestamp time.Time `json:"-"`
	}

	Account struct {
		ID        string      `json:"id"`
		Name      string      `json:"name"`
		Type      AccountType `json:"type"`
		Balance   Amount      `json:"balance"`
		Currency  string      `json:"currency"`
		CreatedAt string      `json:"createdAt"`
	}
)

var (
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidAccountType = errors.New("invalid account type")
)

// ParseKind matches s case-insensitively against the known kinds.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Expense):
		return Expense, nil
	case string(Revenue):
		return Revenue, nil
	}
	return "", ErrInvalidKind
}

func (k Kind) String() string {
	return string(k)
}

// Collection returns the REST collection name holding records of this kind.
func (k Kind) Collection() string {
	return string(k) + "s"
}

// Label is the capitalised form used in filters and page headings.
func (k Kind) Label() string {
	switch k {
	case Expense:
		return "Expense"
	case Revenue:
		return "Revenue"
	}
	return ""
}

// AccountTypes returns the fixed set of account types, in display order.
func AccountTypes() []AccountType {
	return []AccountType{Bank, Savings, CreditCard, Cash, Investment, Wallet}
}

func (t AccountType) IsValid() bool {
	for _, v := range AccountTypes() {
		if t == v {
			return true
		}
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("account name cannot be empty")
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	return nil
}

// Tag produces a tagged copy of r. The caller supplies the already parsed
// creation time.
func Tag(r RawTransaction, kind Kind, ts time.Time) Transaction {
	return Transaction{RawTransaction: r, Kind: kind, Timestamp: ts.UTC()}
}

// Month returns the calendar month the transaction belongs to.
func (t Transaction) Month() MonthKey {
	return MonthKeyOf(t.Timestamp)
}
