package audit

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

func TestLogLoggerWritesEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogLogger(log.New(&buf, "", 0))
	err := logger.Log(context.Background(), Entry{
		Actor:      "user-1",
		Role:       "operator",
		Action:     "index.run",
		ResourceID: "run-1",
		Metadata:   []byte(`{"dry_run":true}`),
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"event=audit", "action=index.run", "actor=user-1", "resource_id=run-1", "digest=" + DigestJSON([]byte(`{"dry_run":true}`))} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
}

func TestDigestJSONEmpty(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatalf("expected empty digest")
	}
}
