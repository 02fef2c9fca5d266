package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendgate/internal/errors"
	"sendgate/internal/models"
)

func newTestApprovalService() (*ApprovalService, *memStore) {
	store := newMemStore()
	return NewApprovalService(store, store, testLogger()), store
}

func TestApprovalService_CreateDraft(t *testing.T) {
	svc, store := newTestApprovalService()
	ctx := context.Background()

	a, err := svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "hi", "hello there")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.NotEmpty(t, a.IdempotencyKey)

	stored, err := store.GetApproval(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestApprovalService_CreateDraftValidation(t *testing.T) {
	svc, _ := newTestApprovalService()
	ctx := context.Background()

	_, err := svc.CreateDraft(ctx, "lead-1", models.Channel("sms"), models.ActionSend, "a@b.com", "", "body")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownChannel, errors.GetCode(err))

	_, err = svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "", "", "body")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))

	_, err = svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestApprovalService_ApproveEmitsEvent(t *testing.T) {
	svc, store := newTestApprovalService()
	ctx := context.Background()

	a, err := svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, a.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, "ops", approved.ApprovedBy)

	events := store.eventsOfType(models.EventApproved)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].MetaJSON, "ops")
}

func TestApprovalService_RejectEmitsEvent(t *testing.T) {
	svc, store := newTestApprovalService()
	ctx := context.Background()

	a, err := svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, a.ID, "ops", "tone is off")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	events := store.eventsOfType(models.EventRejected)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].MetaJSON, "tone is off")
}

func TestApprovalService_ApproveRejectedFails(t *testing.T) {
	svc, _ := newTestApprovalService()
	ctx := context.Background()

	a, err := svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, a.ID, "ops", "no")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, a.ID, "ops")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.GetCode(err))
}

func TestApprovalService_ApproveSentIsIdempotent(t *testing.T) {
	svc, store := newTestApprovalService()
	ctx := context.Background()

	a, err := svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, a.ID, "ops")
	require.NoError(t, err)

	stored, err := store.GetApproval(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkSent())
	require.NoError(t, store.SaveApproval(ctx, stored))

	again, err := svc.Approve(ctx, a.ID, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, again.Status)
	assert.Equal(t, "ops", again.ApprovedBy)
	// no second approved event
	assert.Len(t, store.eventsOfType(models.EventApproved), 1)
}

func TestApprovalService_GetNotFound(t *testing.T) {
	svc, _ := newTestApprovalService()

	_, err := svc.Get(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestApprovalService_List(t *testing.T) {
	svc, _ := newTestApprovalService()
	ctx := context.Background()

	first, err := svc.CreateDraft(ctx, "lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")
	require.NoError(t, err)
	second, err := svc.CreateDraft(ctx, "lead-2", models.ChannelTelegram, models.ActionReply, "+15551234567", "", "body")
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
}
