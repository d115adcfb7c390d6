package rates

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRebaseDerivesRatesRelativeToBase(t *testing.T) {
	quote := Quote{
		Anchor: "EUR",
		Rates: map[string]decimal.Decimal{
			"EUR": d("1"),
			"SEK": d("10"),
			"USD": d("1.1"),
			"nok": d("11.5"),
		},
	}

	m, err := Rebase(quote, "sek")
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if m.Base() != "SEK" {
		t.Fatalf("expected base SEK, got %s", m.Base())
	}
	if _, ok := m.Rate("SEK"); ok {
		t.Fatalf("expected base currency to have no entry")
	}
	checks := map[string]string{
		"EUR": "0.1",
		"USD": "0.11",
		"NOK": "1.15",
	}
	for code, want := range checks {
		got, ok := m.Rate(code)
		if !ok {
			t.Fatalf("expected rate for %s", code)
		}
		if !got.Equal(d(want)) {
			t.Fatalf("rate %s: expected %s, got %s", code, want, got)
		}
	}
	if got, _ := m.Rate("usd"); !got.Equal(d("0.11")) {
		t.Fatalf("expected case-insensitive lookup, got %s", got)
	}
}

func TestRebaseAddsAnchorMissingFromQuote(t *testing.T) {
	quote := Quote{
		Anchor: "USD",
		Rates:  map[string]decimal.Decimal{"SEK": d("4"), "EUR": d("0.5")},
	}
	m, err := Rebase(quote, "SEK")
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	usd, ok := m.Rate("USD")
	if !ok || !usd.Equal(d("0.25")) {
		t.Fatalf("expected anchor USD=0.25, got %s ok=%v", usd, ok)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", m.Len(), m.Codes())
	}
}

func TestRebaseErrors(t *testing.T) {
	if _, err := Rebase(Quote{Rates: map[string]decimal.Decimal{"EUR": d("1")}}, "SEK"); !errors.Is(err, ErrBaseCurrencyNotQuoted) {
		t.Fatalf("expected ErrBaseCurrencyNotQuoted, got %v", err)
	}
	if _, err := Rebase(Quote{Rates: map[string]decimal.Decimal{"SEK": d("0")}}, "SEK"); !errors.Is(err, ErrNonPositiveRate) {
		t.Fatalf("expected ErrNonPositiveRate, got %v", err)
	}
	if _, err := Rebase(Quote{}, ""); !errors.Is(err, ErrEmptyBaseCurrency) {
		t.Fatalf("expected ErrEmptyBaseCurrency, got %v", err)
	}
}

func TestNewRateMapCopiesInput(t *testing.T) {
	in := map[string]decimal.Decimal{"eur": d("0.9")}
	m := NewRateMap("USD", in)
	in["eur"] = d("2")
	in["GBP"] = d("0.8")

	got, ok := m.Rate("EUR")
	if !ok || !got.Equal(d("0.9")) {
		t.Fatalf("expected rate map to be isolated from input, got %s", got)
	}
	if _, ok := m.Rate("GBP"); ok {
		t.Fatalf("expected GBP to be absent")
	}
}

func TestBucketFor(t *testing.T) {
	now := time.Date(2023, time.April, 20, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		date time.Time
		want string
	}{
		{name: "past", date: time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC), want: "2023-04-15"},
		{name: "yesterday", date: time.Date(2023, 4, 19, 23, 0, 0, 0, time.UTC), want: "2023-04-19"},
		{name: "today", date: time.Date(2023, 4, 20, 0, 0, 0, 0, time.UTC), want: LatestBucket},
		{name: "future", date: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), want: LatestBucket},
	}
	for _, tc := range cases {
		if got := BucketFor(tc.date, now, time.UTC); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestBucketForUsesLocationForToday(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:00 UTC on the 19th is already the 20th at UTC+3.
	now := time.Date(2023, time.April, 19, 22, 0, 0, 0, time.UTC)
	date := time.Date(2023, 4, 19, 0, 0, 0, 0, time.UTC)

	if got := BucketFor(date, now, time.UTC); got != LatestBucket {
		t.Fatalf("expected latest in UTC, got %s", got)
	}
	if got := BucketFor(date, now, loc); got != "2023-04-19" {
		t.Fatalf("expected dated bucket in UTC+3, got %s", got)
	}
}
