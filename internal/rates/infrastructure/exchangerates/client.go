package exchangerates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	rates "stats-indexer/internal/rates/domain"
)

const (
	defaultAnchor  = "EUR"
	defaultTimeout = 10 * time.Second
)

// Client fetches rate tables from an exchangeratesapi.io style endpoint:
// GET <base>/<latest|YYYY-MM-DD>?access_key=<key>.
type Client struct {
	baseURL   string
	accessKey string
	anchor    string
	client    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithAnchor sets the anchor currency assumed when a response omits "base".
func WithAnchor(code string) Option {
	return func(c *Client) {
		if code = rates.NormalizeCode(code); code != "" {
			c.anchor = code
		}
	}
}

// WithTimeout overrides the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a rates client.
func NewClient(baseURL, accessKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("exchangerates: empty base url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("exchangerates: invalid base url: %w", err)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		anchor:    defaultAnchor,
		client:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type ratesResponse struct {
	Success bool                       `json:"success"`
	Error   json.RawMessage            `json:"error"`
	Base    string                     `json:"base"`
	Date    string                     `json:"date"`
	Rates   map[string]decimal.Decimal `json:"rates"`
}

// Fetch requests the rate table for bucket.
func (c *Client) Fetch(ctx context.Context, bucket string) (rates.Quote, error) {
	if bucket == "" {
		return rates.Quote{}, errors.New("exchangerates: empty bucket")
	}
	endpoint := c.baseURL + "/" + url.PathEscape(bucket)
	if c.accessKey != "" {
		endpoint += "?access_key=" + url.QueryEscape(c.accessKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return rates.Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return rates.Quote{}, &rates.RateFetchError{Bucket: bucket, Err: err}
	}
	defer resp.Body.Close()

	var body ratesResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode >= 300 {
		return rates.Quote{}, &rates.RateFetchError{Bucket: bucket, Err: fmt.Errorf("http %d%s", resp.StatusCode, errorSuffix(body.Error))}
	}
	if decodeErr != nil {
		return rates.Quote{}, &rates.RateFetchError{Bucket: bucket, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if hasError(body.Error) || !body.Success {
		return rates.Quote{}, &rates.RateFetchError{Bucket: bucket, Err: fmt.Errorf("%w%s", rates.ErrUnsuccessful, errorSuffix(body.Error))}
	}

	anchor := rates.NormalizeCode(body.Base)
	if anchor == "" {
		anchor = c.anchor
	}
	return rates.Quote{Anchor: anchor, Date: body.Date, Rates: body.Rates}, nil
}

func hasError(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "false" && s != `""`
}

// errorSuffix renders the source's error payload, which is a string on some
// deployments and an {code,type,info} object on others.
func errorSuffix(raw json.RawMessage) string {
	if !hasError(raw) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return ": " + text
	}
	var obj struct {
		Code any    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Info != "" || obj.Type != "") {
		if obj.Info != "" {
			return fmt.Sprintf(": %v %s: %s", obj.Code, obj.Type, obj.Info)
		}
		return fmt.Sprintf(": %v %s", obj.Code, obj.Type)
	}
	return ": " + string(raw)
}
