package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collab-service/internal/domain"
)

// mockNotificationRepo is a function-field mock of repository.NotificationRepository.
type mockNotificationRepo struct {
	CreateFunc        func(ctx context.Context, n *domain.CollaborationNotification) error
	ListByUserFunc    func(ctx context.Context, userID string) ([]domain.CollaborationNotification, error)
	MarkReadFunc      func(ctx context.Context, userID string, ids []uuid.UUID) (int64, error)
	MarkAllReadFunc   func(ctx context.Context, userID string) (int64, error)
	CountUnreadFunc   func(ctx context.Context, userID string) (int64, error)
	DeleteOldReadFunc func(ctx context.Context, daysOld int) (int64, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.CollaborationNotification) error {
	return m.CreateFunc(ctx, n)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string) ([]domain.CollaborationNotification, error) {
	return m.ListByUserFunc(ctx, userID)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
	return m.MarkReadFunc(ctx, userID, ids)
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return m.MarkAllReadFunc(ctx, userID)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	return m.CountUnreadFunc(ctx, userID)
}

func (m *mockNotificationRepo) DeleteOldRead(ctx context.Context, daysOld int) (int64, error) {
	return m.DeleteOldReadFunc(ctx, daysOld)
}

func TestNotificationService_MarkReadDispatchesAllWhenNoIDs(t *testing.T) {
	markAllCalled := false
	repo := &mockNotificationRepo{
		MarkAllReadFunc: func(ctx context.Context, userID string) (int64, error) {
			markAllCalled = true
			assert.Equal(t, "u1", userID)
			return 4, nil
		},
		MarkReadFunc: func(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
			t.Fatal("MarkRead should not be called without ids")
			return 0, nil
		},
	}

	svc := NewNotificationService(repo, nil, zap.NewNop())
	count, err := svc.MarkRead(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.True(t, markAllCalled)
}

func TestNotificationService_MarkReadDispatchesBatchWhenIDsGiven(t *testing.T) {
	target := uuid.New()
	repo := &mockNotificationRepo{
		MarkReadFunc: func(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
			assert.Equal(t, []uuid.UUID{target}, ids)
			return 1, nil
		},
		MarkAllReadFunc: func(ctx context.Context, userID string) (int64, error) {
			t.Fatal("MarkAllRead should not be called with ids")
			return 0, nil
		},
	}

	svc := NewNotificationService(repo, nil, zap.NewNop())
	count, err := svc.MarkRead(context.Background(), "u1", []uuid.UUID{target})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotificationService_EnqueueFillsDefaults(t *testing.T) {
	var created *domain.CollaborationNotification
	repo := &mockNotificationRepo{
		CreateFunc: func(ctx context.Context, n *domain.CollaborationNotification) error {
			created = n
			return nil
		},
	}

	svc := NewNotificationService(repo, nil, zap.NewNop())
	notification, err := svc.Enqueue(context.Background(), "u2", domain.JSONMap{"event": "activity_broadcast"})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "u2", created.UserID)
	assert.False(t, created.IsRead)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created, notification)
}

func TestNotificationService_EnqueuePropagatesStoreError(t *testing.T) {
	repo := &mockNotificationRepo{
		CreateFunc: func(ctx context.Context, n *domain.CollaborationNotification) error {
			return errors.New("store down")
		},
	}

	svc := NewNotificationService(repo, nil, zap.NewNop())
	_, err := svc.Enqueue(context.Background(), "u2", nil)
	assert.Error(t, err)
}

func TestNotificationService_UnreadCountWithoutRedisFallsThrough(t *testing.T) {
	repo := &mockNotificationRepo{
		CountUnreadFunc: func(ctx context.Context, userID string) (int64, error) {
			return 7, nil
		},
	}

	svc := NewNotificationService(repo, nil, zap.NewNop())
	count, err := svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
