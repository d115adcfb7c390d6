package elasticsearch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func elasticServer(t *testing.T, status int, respBody string, check func(r *http.Request, body []byte)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if check != nil {
			check(r, body)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSinkBulkSendsBodyWithBasicAuth(t *testing.T) {
	payload := []byte("{\"index\":{\"_index\":\"stats-2023-04\",\"_id\":\"a\"}}\n{\"id\":\"a\"}\n")
	srv, calls := elasticServer(t, http.StatusOK, `{"took":7,"errors":true,"items":[]}`, func(r *http.Request, body []byte) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/_bulk" {
			t.Errorf("expected /_bulk, got %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "elastic" || pass != "secret" {
			t.Errorf("unexpected basic auth %q/%q (%v)", user, pass, ok)
		}
		if string(body) != string(payload) {
			t.Errorf("unexpected body %q", body)
		}
	})

	sink, err := NewSink(Config{Addresses: []string{srv.URL + "/"}, Username: "elastic", Password: "secret"})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	resp, err := sink.Bulk(context.Background(), payload)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if !resp.Succeeded() || resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Took != 7*time.Millisecond || !resp.ItemErrors {
		t.Fatalf("expected summary fields, got %+v", resp)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected one request, got %d", *calls)
	}
}

func TestSinkBulkReportsErrorStatusWithoutRetry(t *testing.T) {
	srv, calls := elasticServer(t, http.StatusServiceUnavailable, `{"error":"unavailable"}`, nil)
	sink, err := NewSink(Config{Addresses: []string{srv.URL}, APIKey: "key"})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	resp, err := sink.Bulk(context.Background(), []byte("{}\n{}\n"))
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if resp.Succeeded() || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 summary, got %+v", resp)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected no retry, got %d requests", *calls)
	}
}

func TestSinkAPIKeyHeader(t *testing.T) {
	srv, _ := elasticServer(t, http.StatusOK, `{"took":1,"errors":false}`, func(r *http.Request, _ []byte) {
		// The auth scheme is matched case-insensitively by Elasticsearch.
		if got := r.Header.Get("Authorization"); !strings.EqualFold(got, "ApiKey key") {
			t.Errorf("expected api key header, got %q", got)
		}
	})
	sink, err := NewSink(Config{Addresses: []string{srv.URL}, APIKey: "key"})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, err := sink.Bulk(context.Background(), []byte("{}\n{}\n")); err != nil {
		t.Fatalf("bulk: %v", err)
	}
}

func TestNewSinkRequiresAddress(t *testing.T) {
	if _, err := NewSink(Config{Addresses: []string{" "}}); err == nil {
		t.Fatalf("expected error without address")
	}
}
