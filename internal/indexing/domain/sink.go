package indexing

import (
	"context"
	"time"
)

// BulkResponse is the sink's summary of one bulk request.
type BulkResponse struct {
	StatusCode int
	Status     string
	Took       time.Duration
	// ItemErrors mirrors the store's top-level "errors" flag; items are not inspected.
	ItemErrors bool
}

// Succeeded reports a 2xx summary status.
func (r BulkResponse) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sink accepts a newline-delimited bulk body in one request.
type Sink interface {
	Bulk(ctx context.Context, body []byte) (BulkResponse, error)
}
