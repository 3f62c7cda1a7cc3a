package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{" 2.50 ", "2.5", true},
		{"", "0", true},
		{"-4", "-4", true},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Decimal.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.Decimal.String(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAmountUnmarshalCoercesStrings(t *testing.T) {
	var rec struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
		D Amount `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a": 50, "b": "12.5", "c": null, "d": ""}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.A.Decimal.String() != "50" || rec.B.Decimal.String() != "12.5" {
		t.Fatalf("unexpected amounts: a=%s b=%s", rec.A.Decimal, rec.B.Decimal)
	}
	if !rec.C.Decimal.IsZero() || !rec.D.Decimal.IsZero() {
		t.Fatalf("null and empty string must decode to zero")
	}
	if err := json.Unmarshal([]byte(`{"a": "lots"}`), &rec); err == nil {
		t.Fatalf("expected error for non numeric string")
	}
}

func TestAmountMarshalWritesNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{A: NewAmount(12.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":12.5}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestAmountDisplay(t *testing.T) {
	cases := map[float64]string{
		0:        "0.00",
		12.5:     "12.50",
		1234.5:   "1,234.50",
		-1234567: "-1,234,567.00",
		999:      "999.00",
	}
	for in, want := range cases {
		if got := NewAmount(in).Display(); got != want {
			t.Fatalf("Display(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestAmountValidate(t *testing.T) {
	if err := NewAmount(0.01).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := NewAmount(0).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := NewAmount(-1).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}
