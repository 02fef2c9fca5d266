package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"sendgate/internal/models"
)

// memStore is an in-memory implementation of every store interface, enough
// to exercise the dispatch core without SQLite.
type memStore struct {
	mu          sync.Mutex
	approvals   []*models.Approval
	suppression map[string]*models.SuppressionEntry
	failed      map[string]*models.FailedSend
	deadLetters []*models.DeadLetter
	events      []*models.DispatchEvent

	failSaveApprovals bool
}

func newMemStore() *memStore {
	return &memStore{
		suppression: make(map[string]*models.SuppressionEntry),
		failed:      make(map[string]*models.FailedSend),
	}
}

func (m *memStore) ListApprovals(ctx context.Context) ([]*models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Approval, len(m.approvals))
	copy(out, m.approvals)
	return out, nil
}

func (m *memStore) GetApproval(ctx context.Context, id string) (*models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.approvals {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memStore) SaveApproval(ctx context.Context, a *models.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.approvals {
		if existing.ID == a.ID {
			m.approvals[i] = a
			return nil
		}
	}
	m.approvals = append(m.approvals, a)
	return nil
}

func (m *memStore) SaveApprovals(ctx context.Context, approvals []*models.Approval) error {
	if m.failSaveApprovals {
		return assertError("save approvals failed")
	}
	for _, a := range approvals {
		if err := m.SaveApproval(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) ListSuppressionEntries(ctx context.Context) ([]*models.SuppressionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SuppressionEntry, 0, len(m.suppression))
	for _, e := range m.suppression {
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) GetSuppressionEntry(ctx context.Context, value string) (*models.SuppressionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppression[value], nil
}

func (m *memStore) UpsertSuppressionEntry(ctx context.Context, entry *models.SuppressionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppression[entry.Value] = entry
	return nil
}

func (m *memStore) DeleteSuppressionEntry(ctx context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.suppression, value)
	return nil
}

func (m *memStore) SaveFailedSend(ctx context.Context, fs *models.FailedSend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *fs
	m.failed[fs.ID] = &copied
	return nil
}

func (m *memStore) DeleteFailedSend(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failed, id)
	return nil
}

func (m *memStore) ListFailedSends(ctx context.Context) ([]*models.FailedSend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FailedSend, 0, len(m.failed))
	for _, fs := range m.failed {
		copied := *fs
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) ListDueFailedSends(ctx context.Context, now time.Time) ([]*models.FailedSend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FailedSend, 0)
	for _, fs := range m.failed {
		if !fs.NextRetryAt.After(now) {
			copied := *fs
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) SaveDeadLetter(ctx context.Context, dl *models.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLetters = append(m.deadLetters, dl)
	return nil
}

func (m *memStore) ListDeadLetters(ctx context.Context) ([]*models.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.DeadLetter, len(m.deadLetters))
	copy(out, m.deadLetters)
	return out, nil
}

func (m *memStore) AppendEvent(ctx context.Context, event *models.DispatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memStore) ListEventsByApproval(ctx context.Context, approvalID string) ([]*models.DispatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.DispatchEvent
	for _, e := range m.events {
		if e.ApprovalID == approvalID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) eventsOfType(t models.EventType) []*models.DispatchEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.DispatchEvent
	for _, e := range m.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type assertError string

func (e assertError) Error() string { return string(e) }

// mockAdapter is a testify mock for the SendAdapter interface.
type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
	args := m.Called(ctx, approval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SendResult), args.Error(1)
}

// stubAdapter returns a fixed outcome and counts invocations.
type stubAdapter struct {
	mu     sync.Mutex
	result *models.SendResult
	err    error
	calls  int
}

func (s *stubAdapter) Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// panicAdapter simulates an adapter bug.
type panicAdapter struct{}

func (panicAdapter) Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
	panic("adapter exploded")
}
