package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"collab-service/internal/domain"
)

// ActivityRepository is an append-only log. Nothing here mutates or deletes
// existing rows.
type ActivityRepository interface {
	Append(ctx context.Context, activity *domain.CollaborationActivity) error
	List(ctx context.Context, targetEntity string, limit int) ([]domain.CollaborationActivity, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, activity *domain.CollaborationActivity) error {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(activity).Error
}

// List returns a bounded newest-first snapshot. An empty targetEntity lists
// across all entities.
func (r *activityRepository) List(ctx context.Context, targetEntity string, limit int) ([]domain.CollaborationActivity, error) {
	var activities []domain.CollaborationActivity

	query := r.db.WithContext(ctx).Model(&domain.CollaborationActivity{})
	if targetEntity != "" {
		query = query.Where("target_entity = ?", targetEntity)
	}

	err := query.Order("created_at DESC").Limit(limit).Find(&activities).Error
	return activities, err
}
