package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// Entry represents an audit log entry for an operator action.
type Entry struct {
	Actor         string
	Role          string
	Action        string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LogLogger writes audit entries as structured log lines.
type LogLogger struct {
	logger *log.Logger
}

// NewLogLogger constructs a log-backed audit logger.
func NewLogLogger(logger *log.Logger) *LogLogger {
	return &LogLogger{logger: logger}
}

// Log writes an audit entry.
func (l *LogLogger) Log(ctx context.Context, entry Entry) error {
	if l == nil || l.logger == nil {
		return errors.New("audit: nil logger")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	l.logger.Printf("event=audit action=%s actor=%s role=%s resource_id=%s ip=%s user_agent=%q digest=%s at=%s",
		entry.Action, entry.Actor, entry.Role, entry.ResourceID, entry.IP, entry.UserAgent, entry.PayloadDigest,
		entry.CreatedAt.Format(time.RFC3339))
	return nil
}
