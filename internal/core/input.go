package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// TransactionInput is the body accepted when creating or editing a
// transaction. Which of Vendor/ReceiptURL/PayerName is kept depends on the
// kind it is written as.
type TransactionInput struct {
	AccountID  string `json:"accountId" validate:"required"`
	Title      string `json:"title" validate:"required,max=200"`
	Amount     Amount `json:"amount" validate:"positive_amount"`
	Category   string `json:"category" validate:"required,max=100"`
	Vendor     string `json:"vendor" validate:"max=200"`
	PayerName  string `json:"payerName" validate:"max=200"`
	Note       string `json:"note" validate:"max=1000"`
	ReceiptURL string `json:"receiptUrl" validate:"omitempty,url"`
	CreatedAt  string `json:"createdAt" validate:"required,timestamp"`
}

// FieldError describes one failed rule on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every failed rule of an input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Amounts are validated through their decimal string form.
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if a, ok := field.Interface().(Amount); ok {
				return a.Decimal.String()
			}
			return nil
		}, Amount{})
		_ = v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && d.IsPositive()
		})
		_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
			_, err := ParseTimestamp(fl.Field().String())
			return err == nil
		})
		// An account may start today in any timezone, so allow up to the end
		// of tomorrow UTC.
		_ = v.RegisterValidation("not_future", func(fl validator.FieldLevel) bool {
			ts, err := ParseTimestamp(fl.Field().String())
			if err != nil {
				return false
			}
			limit := time.Now().UTC().Truncate(24*time.Hour).Add(48 * time.Hour)
			return ts.Before(limit)
		})
		_ = v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
			return AccountType(strings.TrimSpace(fl.Field().String())).IsValid()
		})
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks the input and returns a *ValidationError listing every
// problem found.
func (in TransactionInput) Validate() error {
	return collect(inputValidator().Struct(in))
}

func collect(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "positive_amount":
		return "must be greater than 0"
	case "timestamp":
		return "must be an ISO-8601 date-time"
	case "url":
		return "must be a valid URL"
	case "not_future":
		return "must not be in the future"
	case "account_type":
		return "must be one of Bank, Savings, Credit Card, Cash, Investment, Wallet"
	}
	return "is invalid"
}

// Record turns the input into the stored shape for the given kind. Fields
// that do not belong to the kind are dropped.
func (in TransactionInput) Record(id string, kind Kind) RawTransaction {
	r := RawTransaction{
		ID:        id,
		AccountID: strings.TrimSpace(in.AccountID),
		Title:     strings.TrimSpace(in.Title),
		Amount:    in.Amount,
		Category:  strings.TrimSpace(in.Category),
		Note:      in.Note,
	}
	if ts, err := ParseTimestamp(in.CreatedAt); err == nil {
		r.CreatedAt = FormatTimestamp(ts)
	}
	switch kind {
	case Expense:
		r.Vendor = strings.TrimSpace(in.Vendor)
		r.ReceiptURL = strings.TrimSpace(in.ReceiptURL)
	case Revenue:
		r.PayerName = strings.TrimSpace(in.PayerName)
	}
	return r
}

// AccountInput is the body accepted when creating or editing an account.
type AccountInput struct {
	Name      string `json:"name" validate:"required,max=100"`
	Type      string `json:"type" validate:"required,account_type"`
	Balance   Amount `json:"balance"`
	Currency  string `json:"currency" validate:"required,max=10"`
	CreatedAt string `json:"createdAt" validate:"omitempty,timestamp,not_future"`
}

// Validate checks the input and returns a *ValidationError listing every
// problem found.
func (in AccountInput) Validate() error {
	return collect(inputValidator().Struct(in))
}

// Account turns the input into the stored shape. A missing start date is
// left empty.
func (in AccountInput) Account(id string) Account {
	a := Account{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Type:     AccountType(strings.TrimSpace(in.Type)),
		Balance:  in.Balance,
		Currency: strings.TrimSpace(in.Currency),
	}
	if ts, err := ParseTimestamp(in.CreatedAt); err == nil {
		a.CreatedAt = FormatTimestamp(ts)
	}
	return a
}
