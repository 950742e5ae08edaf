package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
)

// webhookPayload is the JSON body posted for each alert. DeliveryID is
// unique per attempt so receivers can deduplicate.
type webhookPayload struct {
	DeliveryID string    `json:"delivery_id"`
	AlertID    uint      `json:"alert_id"`
	RuleID     uint      `json:"rule_id"`
	EventID    uint      `json:"event_id"`
	Title      string    `json:"title"`
	GroupKey   string    `json:"group_key,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// WebhookNotifier posts alerts as JSON to a single URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook channel. A nil client falls back
// to a default with a sane timeout.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: defaultDeliveryTimeout}
	}
	return &WebhookNotifier{url: url, client: client}
}

// Name identifies the channel in logs.
func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify posts the alert. Any non-2xx response is an error.
func (w *WebhookNotifier) Notify(ctx context.Context, alert *entities.Alert) error {
	payload := webhookPayload{
		DeliveryID: uuid.NewString(),
		AlertID:    alert.ID,
		RuleID:     alert.RuleID,
		EventID:    alert.EventID,
		Title:      alert.Title,
		Status:     alert.Status,
		CreatedAt:  alert.CreatedAt,
	}
	if alert.GroupKey != nil {
		payload.GroupKey = *alert.GroupKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
