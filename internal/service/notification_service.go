package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collab-service/internal/domain"
	"collab-service/internal/repository"
)

const unreadCacheTTL = 5 * time.Minute

// NotificationService manages the per-user notification queues. Redis backs
// an unread-count cache and a per-user publish channel; both are optional.
type NotificationService struct {
	repo   repository.NotificationRepository
	redis  *redis.Client
	logger *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		redis:  redisClient,
		logger: logger,
	}
}

func (s *NotificationService) Enqueue(ctx context.Context, userID string, payload domain.JSONMap) (*domain.CollaborationNotification, error) {
	notification := &domain.CollaborationNotification{
		ID:        uuid.New(),
		UserID:    userID,
		Payload:   payload,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Error("failed to create notification",
			zap.String("userId", userID),
			zap.Error(err))
		return nil, err
	}

	s.publishNotification(ctx, notification)
	s.invalidateUnreadCache(ctx, userID)

	return notification, nil
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.CollaborationNotification, error) {
	return s.repo.ListByUser(ctx, userID)
}

// MarkRead flips notifications to read. With no ids it marks everything for
// the user; with ids only those rows. There is no per-notification unread
// toggle, this is deliberately all-or-one-batch.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
	var (
		count int64
		err   error
	)

	if len(ids) == 0 {
		count, err = s.repo.MarkAllRead(ctx, userID)
	} else {
		count, err = s.repo.MarkRead(ctx, userID, ids)
	}
	if err != nil {
		return 0, err
	}

	s.invalidateUnreadCache(ctx, userID)
	return count, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	cacheKey := fmt.Sprintf("collab:unread:%s", userID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Int64(); err == nil {
			return cached, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		s.redis.Set(ctx, cacheKey, count, unreadCacheTTL)
	}

	return count, nil
}

func (s *NotificationService) CleanupOld(ctx context.Context, daysOld int) (int64, error) {
	return s.repo.DeleteOldRead(ctx, daysOld)
}

func (s *NotificationService) publishNotification(ctx context.Context, notification *domain.CollaborationNotification) {
	if s.redis == nil {
		return
	}

	channel := fmt.Sprintf("collab:notifications:user:%s", notification.UserID)
	data, err := json.Marshal(notification)
	if err != nil {
		s.logger.Error("failed to marshal notification for publish", zap.Error(err))
		return
	}

	if err := s.redis.Publish(ctx, channel, data).Err(); err != nil {
		s.logger.Warn("failed to publish notification", zap.Error(err))
	}
}

func (s *NotificationService) invalidateUnreadCache(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}

	cacheKey := fmt.Sprintf("collab:unread:%s", userID)
	if err := s.redis.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn("failed to invalidate unread cache", zap.Error(err))
	}
}
