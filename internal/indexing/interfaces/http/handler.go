package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"stats-indexer/internal/audit"
	"stats-indexer/internal/auth"
	indexapp "stats-indexer/internal/indexing/application"
)

const (
	// RunPath triggers a run (POST) or reports the state of the runner (GET).
	RunPath = "/api/v1/index/run"
	// LastRunPath returns the most recent run summary.
	LastRunPath = "/api/v1/index/runs/last"

	maxRunRequestBytes = 1 << 16
)

// RunController is the part of the runner the handler drives.
type RunController interface {
	Run(ctx context.Context, opts indexapp.RunOptions) (indexapp.RunResult, error)
	LastResult() (indexapp.RunResult, bool)
	Running() bool
}

// Handler provides index run HTTP endpoints.
type Handler struct {
	runner      RunController
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(runner RunController, auditLogger audit.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("index handler: nil runner")
	}
	return &Handler{runner: runner, auditLogger: auditLogger}, nil
}

type runRequest struct {
	LookbackDays int  `json:"lookback_days"`
	DryRun       bool `json:"dry_run"`
}

type statusResponse struct {
	Running bool                `json:"running"`
	Last    *indexapp.RunResult `json:"last,omitempty"`
}

// ServeHTTP handles RunPath and LastRunPath.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case RunPath:
		switch r.Method {
		case http.MethodPost:
			h.handleRun(w, r)
		case http.MethodGet:
			h.handleStatus(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case LastRunPath:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleLast(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRunRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}

	var req runRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	if req.LookbackDays < 0 {
		http.Error(w, "lookback_days must not be negative", http.StatusBadRequest)
		return
	}

	// The run outlives a disconnecting client; the runner serializes runs.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.runner.Run(ctx, indexapp.RunOptions{LookbackDays: req.LookbackDays, DryRun: req.DryRun})
	if errors.Is(err, indexapp.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.logAudit(r, result.RunID, body)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Running: h.runner.Running()}
	if last, ok := h.runner.LastResult(); ok {
		resp.Last = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLast(w http.ResponseWriter, r *http.Request) {
	last, ok := h.runner.LastResult()
	if !ok {
		http.Error(w, "no run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (h *Handler) logAudit(r *http.Request, runID string, body []byte) {
	if h.auditLogger == nil {
		return
	}
	var metadata json.RawMessage
	if len(body) > 0 && json.Valid(body) {
		metadata = body
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:      auth.SubjectFromContext(r.Context()),
		Role:       string(auth.RoleFromContext(r.Context())),
		Action:     "index.run",
		ResourceID: runID,
		Metadata:   metadata,
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
