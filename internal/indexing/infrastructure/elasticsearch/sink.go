package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	indexing "stats-indexer/internal/indexing/domain"
)

const defaultTimeout = 60 * time.Second

// Config defines the cluster connection.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Sink writes bulk bodies to Elasticsearch.
type Sink struct {
	client  *es8.Client
	timeout time.Duration
}

// NewSink constructs a bulk sink. Requests are never retried.
func NewSink(cfg Config) (*Sink, error) {
	addresses := make([]string, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		addr = strings.TrimRight(strings.TrimSpace(addr), "/")
		if addr != "" {
			addresses = append(addresses, addr)
		}
	}
	if len(addresses) == 0 {
		return nil, errors.New("elasticsearch: address required")
	}
	client, err := es8.NewClient(es8.Config{
		Addresses:    addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		APIKey:       cfg.APIKey,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sink{client: client, timeout: timeout}, nil
}

type bulkSummary struct {
	Took   int64 `json:"took"`
	Errors bool  `json:"errors"`
}

// Bulk posts body to the _bulk endpoint and returns the summary status.
func (s *Sink) Bulk(ctx context.Context, body []byte) (indexing.BulkResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := esapi.BulkRequest{Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return indexing.BulkResponse{}, err
	}
	defer res.Body.Close()

	out := indexing.BulkResponse{StatusCode: res.StatusCode, Status: res.Status()}
	if res.IsError() {
		_, _ = io.Copy(io.Discard, res.Body)
		return out, nil
	}
	var summary bulkSummary
	if err := json.NewDecoder(res.Body).Decode(&summary); err == nil {
		out.Took = time.Duration(summary.Took) * time.Millisecond
		out.ItemErrors = summary.Errors
	}
	return out, nil
}
