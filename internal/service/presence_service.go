package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collab-service/internal/domain"
	"collab-service/internal/repository"
)

// PresenceService wraps the presence store. Presence is advisory state: store
// failures are logged and swallowed at the call sites inside the socket loop,
// so a flaky database degrades to stale reads instead of dropped connections.
type PresenceService struct {
	repo   repository.PresenceRepository
	redis  *redis.Client
	logger *zap.Logger
}

func NewPresenceService(repo repository.PresenceRepository, redisClient *redis.Client, logger *zap.Logger) *PresenceService {
	return &PresenceService{
		repo:   repo,
		redis:  redisClient,
		logger: logger,
	}
}

func (s *PresenceService) Upsert(ctx context.Context, presence *domain.UserPresence) error {
	if err := s.repo.Upsert(ctx, presence); err != nil {
		s.logger.Error("failed to upsert presence",
			zap.String("userId", presence.UserID),
			zap.String("page", presence.CurrentPage),
			zap.Error(err))
		return err
	}

	s.publishPresence(ctx, presence)
	return nil
}

func (s *PresenceService) GetByPage(ctx context.Context, page string) ([]domain.UserPresence, error) {
	return s.repo.GetByPage(ctx, page)
}

func (s *PresenceService) GetByUser(ctx context.Context, userID string) (*domain.UserPresence, error) {
	return s.repo.GetByUser(ctx, userID)
}

func (s *PresenceService) MarkInactive(ctx context.Context, userID string) error {
	if err := s.repo.MarkInactive(ctx, userID); err != nil {
		s.logger.Error("failed to mark presence inactive",
			zap.String("userId", userID),
			zap.Error(err))
		return err
	}
	return nil
}

// publishPresence mirrors presence changes onto a redis channel so sidecar
// consumers (audit, analytics) can follow along. Best effort only.
func (s *PresenceService) publishPresence(ctx context.Context, presence *domain.UserPresence) {
	if s.redis == nil {
		return
	}

	channel := fmt.Sprintf("collab:page:%s", presence.CurrentPage)
	data, err := json.Marshal(presence)
	if err != nil {
		s.logger.Error("failed to marshal presence for publish", zap.Error(err))
		return
	}

	if err := s.redis.Publish(ctx, channel, data).Err(); err != nil {
		s.logger.Warn("failed to publish presence event", zap.Error(err))
	}
}
