package service

import (
	"context"

	"go.uber.org/zap"

	"collab-service/internal/domain"
	"collab-service/internal/repository"
)

const maxActivityListLimit = 100

// ActivityService wraps the append-only activity log.
type ActivityService struct {
	repo         repository.ActivityRepository
	defaultLimit int
	logger       *zap.Logger
}

func NewActivityService(repo repository.ActivityRepository, defaultLimit int, logger *zap.Logger) *ActivityService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &ActivityService{
		repo:         repo,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

func (s *ActivityService) Record(ctx context.Context, activity *domain.CollaborationActivity) error {
	if err := s.repo.Append(ctx, activity); err != nil {
		s.logger.Error("failed to append activity",
			zap.String("userId", activity.UserID),
			zap.String("targetEntity", activity.TargetEntity),
			zap.Error(err))
		return err
	}
	return nil
}

// List returns a bounded newest-first snapshot. The snapshot is not a live
// stream; freshness comes from the caller re-polling.
func (s *ActivityService) List(ctx context.Context, targetEntity string, limit int) ([]domain.CollaborationActivity, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxActivityListLimit {
		limit = maxActivityListLimit
	}
	return s.repo.List(ctx, targetEntity, limit)
}
