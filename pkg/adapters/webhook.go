// Package adapters provides SendAdapter implementations. The webhook
// adapter covers every channel whose delivery service sits behind an HTTP
// endpoint: it posts the outbound message and expects the standard
// {ok, message_id, error} outcome back.
package adapters

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"sendgate/internal/models"
)

// WebhookAdapter delivers messages by POSTing them to a per-channel
// endpoint. It is stateless: one request per attempt, outcome from the
// response body.
type WebhookAdapter struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookAdapter creates an adapter for one endpoint. The secret, when
// set, signs each request body with an HMAC-SHA256 header.
func NewWebhookAdapter(url, secret string, client *http.Client) *WebhookAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookAdapter{url: url, secret: secret, client: client}
}

type sendPayload struct {
	ApprovalID     string `json:"approvalId"`
	IdempotencyKey string `json:"idempotencyKey"`
	Channel        string `json:"channel"`
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body"`
}

// Send posts the approval's message to the endpoint. Transport problems and
// non-2xx statuses are returned as errors; a decoded ok=false outcome is
// returned as-is for the caller to interpret.
func (w *WebhookAdapter) Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
	payload, err := json.Marshal(sendPayload{
		ApprovalID:     approval.ID,
		IdempotencyKey: approval.IdempotencyKey,
		Channel:        string(approval.Channel),
		Recipient:      approval.Recipient,
		Subject:        approval.Subject,
		Body:           approval.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		mac := hmac.New(sha256.New, []byte(w.secret))
		mac.Write(payload)
		req.Header.Set("X-Sendgate-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("adapter endpoint returned status %d", resp.StatusCode)
	}

	var result models.SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
