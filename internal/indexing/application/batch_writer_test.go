package application

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	catalog "stats-indexer/internal/catalog/domain"
	indexing "stats-indexer/internal/indexing/domain"
)

type stubSink struct {
	mu     sync.Mutex
	calls  int
	bodies [][]byte
	resp   indexing.BulkResponse
	err    error
}

func (s *stubSink) Bulk(ctx context.Context, body []byte) (indexing.BulkResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.bodies = append(s.bodies, append([]byte(nil), body...))
	if s.err != nil {
		return indexing.BulkResponse{}, s.err
	}
	if s.resp.StatusCode == 0 {
		return indexing.BulkResponse{StatusCode: http.StatusOK, Status: "200 OK"}, nil
	}
	return s.resp, nil
}

func record(programID, sdate string) indexing.FormattedRecord {
	return indexing.FormattedRecord{
		ID:          indexing.Fingerprint(programID, sdate),
		ProgramID:   catalog.ProgramID(programID),
		SDate:       sdate,
		TotalAmount: decimal.NewFromInt(1),
		Program:     catalog.Program{ID: catalog.ProgramID(programID), Currency: "SEK"},
	}
}

func newWriter(t *testing.T, sink indexing.Sink, partitioning indexing.Partitioning) *BulkBatchWriter {
	t.Helper()
	w, err := NewBulkBatchWriter(sink, partitioning)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	return w
}

func bodyLines(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var lines []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestWriteSameMonthSharesPartitionInInputOrder(t *testing.T) {
	sink := &stubSink{}
	w := newWriter(t, sink, indexing.PartitionMonthly)
	records := []indexing.FormattedRecord{record("2", "2023-04-20"), record("1", "2023-04-01")}

	result, err := w.Write(context.Background(), records, "nifty-stats")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("expected one bulk call, got %d", sink.calls)
	}
	if result.Actions != 2 || len(result.Partitions) != 1 || result.Partitions["nifty-stats-2023-04"] != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Written {
		t.Fatalf("expected written result")
	}

	lines := bodyLines(t, sink.bodies[0])
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	first := lines[0]["index"].(map[string]any)
	second := lines[2]["index"].(map[string]any)
	if first["_id"] != records[0].ID || second["_id"] != records[1].ID {
		t.Fatalf("expected input order, got %v then %v", first["_id"], second["_id"])
	}
	if first["_index"] != "nifty-stats-2023-04" {
		t.Fatalf("unexpected index %v", first["_index"])
	}
	if lines[1]["id"] != records[0].ID {
		t.Fatalf("expected document after its action, got %v", lines[1]["id"])
	}
	if !bytes.HasSuffix(sink.bodies[0], []byte("\n")) {
		t.Fatalf("expected trailing newline")
	}
}

func TestWriteDailyPartitionsAndDuplicates(t *testing.T) {
	sink := &stubSink{}
	w := newWriter(t, sink, indexing.PartitionDaily)
	records := []indexing.FormattedRecord{
		record("1", "2023-04-15"),
		record("1", "2023-04-15"),
		record("1", "2023-04-16"),
	}

	result, err := w.Write(context.Background(), records, "stats")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if result.Actions != 3 {
		t.Fatalf("expected duplicates kept, got %d actions", result.Actions)
	}
	if result.Partitions["stats-2023-04-15"] != 2 || result.Partitions["stats-2023-04-16"] != 1 {
		t.Fatalf("unexpected partitions: %+v", result.Partitions)
	}
}

func TestWriteEmptyInputSkipsSink(t *testing.T) {
	sink := &stubSink{}
	w := newWriter(t, sink, indexing.PartitionMonthly)
	result, err := w.Write(context.Background(), nil, "stats")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sink.calls != 0 {
		t.Fatalf("expected no bulk call, got %d", sink.calls)
	}
	if result.Written || result.Actions != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestWriteRejectedStatus(t *testing.T) {
	sink := &stubSink{resp: indexing.BulkResponse{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}}
	w := newWriter(t, sink, indexing.PartitionMonthly)
	result, err := w.Write(context.Background(), []indexing.FormattedRecord{record("1", "2023-04-15")}, "stats")
	var writeErr *indexing.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if writeErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", writeErr.StatusCode)
	}
	if result.Written || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestWriteTransportFailure(t *testing.T) {
	cause := errors.New("connection refused")
	w := newWriter(t, &stubSink{err: cause}, indexing.PartitionMonthly)
	_, err := w.Write(context.Background(), []indexing.FormattedRecord{record("1", "2023-04-15")}, "stats")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestPrepareRejectsBadDate(t *testing.T) {
	w := newWriter(t, &stubSink{}, indexing.PartitionMonthly)
	if _, err := w.Prepare([]indexing.FormattedRecord{record("1", "yesterday")}, "stats"); err == nil {
		t.Fatalf("expected error for unparseable sdate")
	}
}

func TestNewBulkBatchWriterValidation(t *testing.T) {
	if _, err := NewBulkBatchWriter(nil, indexing.PartitionMonthly); err == nil {
		t.Fatalf("expected error for nil sink")
	}
	if _, err := NewBulkBatchWriter(&stubSink{}, "hourly"); !errors.Is(err, indexing.ErrInvalidPartitioning) {
		t.Fatalf("expected ErrInvalidPartitioning, got %v", err)
	}
}
