package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/hunt-engine/internal/handlers"
	"github.com/jwebster45206/hunt-engine/internal/line"
)

const (
	// PollInterval is how often to check progress for updates
	PollInterval = 250 * time.Millisecond
	// WebhookTimeout is max time to wait for a queued event to be applied
	WebhookTimeout = 15 * time.Second
)

var errNoProgress = errors.New("no progress recorded")

// PostWebhook sends a signed LINE webhook carrying one event for userID.
// The reply token is left empty so the worker pushes instead of replying.
func PostWebhook(ctx context.Context, client *http.Client, baseURL, secret, userID, event, text string) error {
	ev := map[string]any{
		"type":           event,
		"timestamp":      time.Now().UnixMilli(),
		"webhookEventId": uuid.NewString(),
		"deliveryContext": map[string]any{
			"isRedelivery": false,
		},
		"source": map[string]any{
			"type":   "user",
			"userId": userID,
		},
	}
	if event == "message" {
		ev["message"] = map[string]any{
			"type": "text",
			"id":   uuid.NewString(),
			"text": text,
		}
	}
	body, err := json.Marshal(map[string]any{
		"destination": "integration",
		"events":      []any{ev},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/callback", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(line.SignatureHeader, line.Sign(secret, body))

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d (expected 200): %s", resp.StatusCode, string(b))
	}
	return nil
}

// GetProgress retrieves a player's progress. errNoProgress is returned
// for an unknown player.
func GetProgress(ctx context.Context, client *http.Client, baseURL, userID string) (*handlers.ProgressResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/progress/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send progress request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNoProgress
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("progress endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var p handlers.ProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

// PollForState polls until the player's stored state is want. Events
// that leave the state unchanged are not saved, so the state is the only
// reliable sign that a queued event was applied.
func PollForState(ctx context.Context, client *http.Client, baseURL, userID, want string) (*handlers.ProgressResponse, error) {
	timeout := time.After(WebhookTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	last := "<none>"
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for state %s (last seen %s, waited %v)", want, last, WebhookTimeout)
		case <-ticker.C:
			p, err := GetProgress(ctx, client, baseURL, userID)
			if err != nil {
				// not stored yet, or a transient failure; keep polling
				continue
			}
			last = p.State
			if p.State == want {
				return p, nil
			}
		}
	}
}
