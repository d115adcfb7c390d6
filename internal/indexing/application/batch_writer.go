package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	indexing "stats-indexer/internal/indexing/domain"
)

// Action is one (action, document) pair of a bulk batch.
type Action struct {
	Index    string
	ID       string
	Document indexing.FormattedRecord
}

// Batch is a prepared bulk payload.
type Batch struct {
	Actions    []Action
	Partitions map[string]int
	Body       []byte
}

// WriteResult summarizes one bulk write.
type WriteResult struct {
	Actions    int            `json:"actions"`
	Partitions map[string]int `json:"partitions,omitempty"`
	Bytes      int            `json:"bytes"`
	Written    bool           `json:"written"`
	StatusCode int            `json:"status_code,omitempty"`
	Status     string         `json:"status,omitempty"`
	ItemErrors bool           `json:"item_errors"`
	Duration   time.Duration  `json:"-"`
}

// BulkBatchWriter groups records into time-partitioned indices and writes them
// as one bulk request.
type BulkBatchWriter struct {
	sink         indexing.Sink
	partitioning indexing.Partitioning
}

// NewBulkBatchWriter constructs a writer.
func NewBulkBatchWriter(sink indexing.Sink, partitioning indexing.Partitioning) (*BulkBatchWriter, error) {
	if sink == nil {
		return nil, errors.New("indexing: sink required")
	}
	if partitioning == "" {
		partitioning = indexing.PartitionMonthly
	}
	if !partitioning.IsValid() {
		return nil, indexing.ErrInvalidPartitioning
	}
	return &BulkBatchWriter{sink: sink, partitioning: partitioning}, nil
}

// Partitioning returns the configured granularity.
func (w *BulkBatchWriter) Partitioning() indexing.Partitioning { return w.partitioning }

// Prepare builds the ordered actions and the newline-delimited body. Records
// keep their input order and duplicates are kept.
func (w *BulkBatchWriter) Prepare(records []indexing.FormattedRecord, indexPrefix string) (Batch, error) {
	batch := Batch{
		Actions:    make([]Action, 0, len(records)),
		Partitions: make(map[string]int),
	}
	for _, record := range records {
		name, err := w.partitioning.IndexName(indexPrefix, record.SDate)
		if err != nil {
			return Batch{}, fmt.Errorf("indexing: partition for %s: %w", record.ID, err)
		}
		batch.Actions = append(batch.Actions, Action{Index: name, ID: record.ID, Document: record})
		batch.Partitions[name]++
	}
	body, err := EncodeActions(batch.Actions)
	if err != nil {
		return Batch{}, err
	}
	batch.Body = body
	return batch, nil
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

// EncodeActions renders actions as action line + document line pairs, each
// terminated by a newline.
func EncodeActions(actions []Action) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, action := range actions {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: action.Index, ID: action.ID}}); err != nil {
			return nil, err
		}
		if err := enc.Encode(action.Document); err != nil {
			return nil, fmt.Errorf("indexing: encode %s: %w", action.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// Write sends all records in one bulk request. An empty input sends nothing.
// A transport failure or non-2xx status is returned as *indexing.WriteError
// alongside the partial result.
func (w *BulkBatchWriter) Write(ctx context.Context, records []indexing.FormattedRecord, indexPrefix string) (WriteResult, error) {
	if len(records) == 0 {
		return WriteResult{Partitions: map[string]int{}}, nil
	}
	batch, err := w.Prepare(records, indexPrefix)
	if err != nil {
		return WriteResult{}, err
	}
	result := WriteResult{
		Actions:    len(batch.Actions),
		Partitions: batch.Partitions,
		Bytes:      len(batch.Body),
	}

	start := time.Now()
	resp, err := w.sink.Bulk(ctx, batch.Body)
	result.Duration = time.Since(start)
	if err != nil {
		return result, &indexing.WriteError{Err: err}
	}
	result.StatusCode = resp.StatusCode
	result.Status = resp.Status
	result.ItemErrors = resp.ItemErrors
	if !resp.Succeeded() {
		return result, &indexing.WriteError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	result.Written = true
	return result, nil
}
