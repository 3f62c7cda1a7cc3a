package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// DecodeTransactions decodes a JSON array of transaction records one element
// at a time. An element that does not fit RawTransaction is kept with Invalid
// set to the reason, so a single bad record cannot fail its collection. Only
// a body that is not an array is an error.
func DecodeTransactions(data []byte) ([]RawTransaction, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := make([]RawTransaction, 0, len(items))
	for _, item := range items {
		var r RawTransaction
		if err := json.Unmarshal(item, &r); err != nil {
			r = salvage(item)
			r.Invalid = decodeReason(err)
		}
		out = append(out, r)
	}
	return out, nil
}

// salvage keeps whatever identifying fields can still be read from a record
// that failed to decode.
func salvage(item json.RawMessage) RawTransaction {
	var fields map[string]any
	if json.Unmarshal(item, &fields) != nil {
		return RawTransaction{}
	}
	return RawTransaction{
		ID:        textOf(fields["id"]),
		AccountID: textOf(fields["accountId"]),
		Title:     textOf(fields["title"]),
		Category:  textOf(fields["category"]),
		CreatedAt: textOf(fields["createdAt"]),
	}
}

func textOf(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func decodeReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "amount: " + ErrInvalidAmount.Error()
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return "malformed record: " + err.Error()
}
