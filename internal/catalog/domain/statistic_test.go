package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseSDate(t *testing.T) {
	want := time.Date(2023, time.April, 15, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2023-04-15", "2023-04-15 13:45:00", "2023-04-15T13:45:00Z", " 2023-04-15 "} {
		got, err := ParseSDate(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	if _, err := ParseSDate(""); err != ErrEmptyStatisticDate {
		t.Fatalf("expected ErrEmptyStatisticDate, got %v", err)
	}
	if _, err := ParseSDate("15/04/2023"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestFormatSDate(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{in: "2023-04-15", want: "2023-04-15"},
		{in: []byte("2023-04-15"), want: "2023-04-15"},
		{in: time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC), want: "2023-04-15"},
		{in: time.Date(2023, 4, 15, 8, 30, 0, 0, time.UTC), want: "2023-04-15 08:30:00"},
		{in: nil, want: ""},
	}
	for _, tc := range cases {
		got, err := FormatSDate(tc.in)
		if err != nil {
			t.Fatalf("format %v: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("format %v: expected %q, got %q", tc.in, tc.want, got)
		}
	}
	if _, err := FormatSDate(42); err == nil {
		t.Fatalf("expected error for integer sdate")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    any
		valid bool
		want  string
	}{
		{in: nil, valid: false},
		{in: "", valid: false},
		{in: []byte("90.50"), valid: true, want: "90.5"},
		{in: "12", valid: true, want: "12"},
		{in: int64(7), valid: true, want: "7"},
		{in: 1.25, valid: true, want: "1.25"},
		{in: "1e2", valid: true, want: "100"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("amount %v: %v", tc.in, err)
		}
		if got.Valid != tc.valid {
			t.Fatalf("amount %v: expected valid=%v", tc.in, tc.valid)
		}
		if tc.valid && !got.Decimal.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("amount %v: expected %s, got %s", tc.in, tc.want, got.Decimal)
		}
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestStatisticAmountDefaultsToZero(t *testing.T) {
	s := Statistic{ProgramID: "1", SDate: "2023-04-15"}
	if !s.Amount().IsZero() {
		t.Fatalf("expected null amount to read as zero, got %s", s.Amount())
	}
}
