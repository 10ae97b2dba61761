// Package services provides external service integrations and technical concerns like hooks and metrics
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// IndicatorCreatedEvent is emitted whenever a participant becomes an
// indicator (promotion or indicator-kind import).
type IndicatorCreatedEvent struct {
	TenantID        uint   `json:"tenant_id"`
	ParticipantUUID string `json:"participant_uuid"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ReferralCode    string `json:"referral_code,omitempty"`
}

// HookDispatcher notifies external collaborators about indicator lifecycle
// events. Dispatch is fire-and-forget from the engine's point of view:
// failures are logged by callers and never affect the triggering operation.
type HookDispatcher interface {
	DispatchIndicatorCreated(ctx context.Context, event IndicatorCreatedEvent) error
}

// WebhookDispatcher posts events as JSON to a configured endpoint
type WebhookDispatcher struct {
	endpoint string
	client   *http.Client
}

// NewWebhookDispatcher creates a webhook-backed hook dispatcher
func NewWebhookDispatcher(endpoint string, timeout time.Duration) HookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// DispatchIndicatorCreated posts the event to the configured endpoint
func (d *WebhookDispatcher) DispatchIndicatorCreated(ctx context.Context, event IndicatorCreatedEvent) error {
	if d.endpoint == "" {
		return fmt.Errorf("hook endpoint not configured")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal hook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver hook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hook endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

// MockHookDispatcher records dispatched events for tests
type MockHookDispatcher struct {
	mu     sync.Mutex
	Events []IndicatorCreatedEvent
}

// NewMockHookDispatcher creates an in-memory hook dispatcher
func NewMockHookDispatcher() *MockHookDispatcher {
	return &MockHookDispatcher{}
}

func (d *MockHookDispatcher) DispatchIndicatorCreated(_ context.Context, event IndicatorCreatedEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Events = append(d.Events, event)
	log.Printf("indicator created hook: tenant=%d participant=%s", event.TenantID, event.ParticipantUUID)
	return nil
}

// DispatchedEvents returns a snapshot of recorded events
func (d *MockHookDispatcher) DispatchedEvents() []IndicatorCreatedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]IndicatorCreatedEvent, len(d.Events))
	copy(out, d.Events)
	return out
}
