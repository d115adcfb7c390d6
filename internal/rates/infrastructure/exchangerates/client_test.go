package exchangerates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	rates "stats-indexer/internal/rates/domain"
)

func TestClientFetchLatest(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("access_key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"base":"EUR","date":"2023-04-20","rates":{"SEK":11.25,"USD":1.0975,"EUR":1}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/v1/", "secret-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	quote, err := client.Fetch(context.Background(), rates.LatestBucket)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/v1/latest" {
		t.Fatalf("expected /v1/latest, got %s", gotPath)
	}
	if gotKey != "secret-key" {
		t.Fatalf("expected access key, got %q", gotKey)
	}
	if quote.Anchor != "EUR" || quote.Date != "2023-04-20" {
		t.Fatalf("unexpected quote header: %+v", quote)
	}
	if !quote.Rates["SEK"].Equal(decimal.RequireFromString("11.25")) {
		t.Fatalf("expected SEK 11.25, got %s", quote.Rates["SEK"])
	}
}

func TestClientFetchDatedUsesConfiguredAnchor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/2023-04-15") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"rates":{"SEK":10.4}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", WithAnchor("usd"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	quote, err := client.Fetch(context.Background(), "2023-04-15")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.Anchor != "USD" {
		t.Fatalf("expected fallback anchor USD, got %s", quote.Anchor)
	}
}

func TestClientFetchFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "unsuccessful", status: http.StatusOK, body: `{"success":false}`, wantMsg: "source reported failure"},
		{name: "error object", status: http.StatusOK, body: `{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"You have not supplied a valid API Access Key."}}`, wantMsg: "invalid_access_key"},
		{name: "error string", status: http.StatusOK, body: `{"success":true,"error":"quota exceeded","rates":{}}`, wantMsg: "quota exceeded"},
		{name: "http status", status: http.StatusBadGateway, body: `oops`, wantMsg: "http 502"},
		{name: "bad json", status: http.StatusOK, body: `{"success":`, wantMsg: "decode response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := NewClient(server.URL, "k")
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.Fetch(context.Background(), "2023-04-15")
			var fetchErr *rates.RateFetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected RateFetchError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in %q", tc.wantMsg, err.Error())
			}
		})
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("", "k"); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
