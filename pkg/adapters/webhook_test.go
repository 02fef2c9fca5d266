package adapters

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendgate/internal/models"
)

func testApproval() *models.Approval {
	return models.NewApproval("lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "hi", "hello there")
}

func TestWebhookAdapter_Send(t *testing.T) {
	var gotPayload sendPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(models.SendResult{OK: true, MessageID: "msg-1"})
	}))
	defer server.Close()

	a := testApproval()
	adapter := NewWebhookAdapter(server.URL, "", nil)

	result, err := adapter.Send(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "msg-1", result.MessageID)

	assert.Equal(t, a.ID, gotPayload.ApprovalID)
	assert.Equal(t, a.IdempotencyKey, gotPayload.IdempotencyKey)
	assert.Equal(t, "email", gotPayload.Channel)
	assert.Equal(t, "a@b.com", gotPayload.Recipient)
	assert.Equal(t, "hello there", gotPayload.Body)
}

func TestWebhookAdapter_SignsRequests(t *testing.T) {
	const secret = "shared-secret"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, r.Header.Get("X-Sendgate-Signature"))

		_ = json.NewEncoder(w).Encode(models.SendResult{OK: true})
	}))
	defer server.Close()

	adapter := NewWebhookAdapter(server.URL, secret, nil)
	_, err := adapter.Send(context.Background(), testApproval())
	require.NoError(t, err)
}

func TestWebhookAdapter_NoSignatureWithoutSecret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Sendgate-Signature"))
		_ = json.NewEncoder(w).Encode(models.SendResult{OK: true})
	}))
	defer server.Close()

	adapter := NewWebhookAdapter(server.URL, "", nil)
	_, err := adapter.Send(context.Background(), testApproval())
	require.NoError(t, err)
}

func TestWebhookAdapter_PlatformRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.SendResult{OK: false, Error: "recipient opted out"})
	}))
	defer server.Close()

	adapter := NewWebhookAdapter(server.URL, "", nil)
	result, err := adapter.Send(context.Background(), testApproval())
	require.NoError(t, err, "an ok=false outcome is not a transport error")
	assert.False(t, result.OK)
	assert.Equal(t, "recipient opted out", result.Error)
}

func TestWebhookAdapter_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := NewWebhookAdapter(server.URL, "", nil)
	_, err := adapter.Send(context.Background(), testApproval())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookAdapter_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewWebhookAdapter(server.URL, "", nil)
	_, err := adapter.Send(ctx, testApproval())
	assert.Error(t, err)
}

func TestWebhookAdapter_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	adapter := NewWebhookAdapter(server.URL, "", nil)
	_, err := adapter.Send(context.Background(), testApproval())
	assert.Error(t, err)
}
