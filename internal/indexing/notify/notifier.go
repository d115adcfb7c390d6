package notify

import "context"

// AlertMessage represents a failed index run.
type AlertMessage struct {
	RunID             string            `json:"run_id"`
	Stage             string            `json:"stage"`
	Error             string            `json:"error"`
	Cutoff            string            `json:"cutoff,omitempty"`
	Statistics        int               `json:"statistics"`
	Records           int               `json:"records"`
	Skipped           map[string]int    `json:"skipped,omitempty"`
	Partitions        map[string]int    `json:"partitions,omitempty"`
	StatusCode        int               `json:"status_code,omitempty"`
	RecommendedAction string            `json:"recommended_action,omitempty"`
	Meta              map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}
