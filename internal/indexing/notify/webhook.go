package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookNotifier sends alerts via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string       `json:"msgtype"`
	Text    webhookText  `json:"text"`
	Alert   AlertMessage `json:"alert"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlertMessage(msg)},
		Alert:   msg,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatAlertMessage(msg AlertMessage) string {
	var b strings.Builder
	b.WriteString("[Stats Indexer Alert]\n")
	if msg.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", msg.RunID)
	}
	if msg.Stage != "" {
		fmt.Fprintf(&b, "Stage: %s\n", msg.Stage)
	}
	if msg.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", msg.Error)
	}
	if msg.Cutoff != "" {
		fmt.Fprintf(&b, "Cutoff: %s\n", msg.Cutoff)
	}
	fmt.Fprintf(&b, "Statistics: %d Records: %d\n", msg.Statistics, msg.Records)
	if msg.StatusCode != 0 {
		fmt.Fprintf(&b, "Status: %d\n", msg.StatusCode)
	}
	if len(msg.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped: %s\n", formatCounts(msg.Skipped))
	}
	if len(msg.Partitions) > 0 {
		fmt.Fprintf(&b, "Partitions: %s\n", formatCounts(msg.Partitions))
	}
	if msg.RecommendedAction != "" {
		fmt.Fprintf(&b, "Suggested: %s\n", msg.RecommendedAction)
	}
	return strings.TrimSpace(b.String())
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
