package job

import (
	"context"

	"go.uber.org/zap"

	"collab-service/internal/service"
)

// CleanupJob prunes read notifications past the retention window. Presence
// rows are soft state and never deleted; activities are append-only and kept.
type CleanupJob struct {
	notificationService *service.NotificationService
	retentionDays       int
	logger              *zap.Logger
}

func NewCleanupJob(notificationService *service.NotificationService, retentionDays int, logger *zap.Logger) *CleanupJob {
	return &CleanupJob{
		notificationService: notificationService,
		retentionDays:       retentionDays,
		logger:              logger,
	}
}

// Run executes one cleanup pass. Satisfies cron.Job.
func (j *CleanupJob) Run() {
	ctx := context.Background()

	deleted, err := j.notificationService.CleanupOld(ctx, j.retentionDays)
	if err != nil {
		j.logger.Error("Failed to clean up old notifications",
			zap.Int("retention_days", j.retentionDays),
			zap.Error(err),
		)
		return
	}

	if deleted > 0 {
		j.logger.Info("Cleaned up old notifications",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", j.retentionDays),
		)
	}
}
