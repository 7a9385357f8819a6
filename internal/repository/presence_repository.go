package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collab-service/internal/domain"
)

// PresenceRepository is the durable record of each user's last-known location.
type PresenceRepository interface {
	Upsert(ctx context.Context, presence *domain.UserPresence) error
	GetByPage(ctx context.Context, page string) ([]domain.UserPresence, error)
	GetByUser(ctx context.Context, userID string) (*domain.UserPresence, error)
	MarkInactive(ctx context.Context, userID string) error
}

type presenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepository{db: db}
}

// Upsert writes the row keyed by user_id. Last write wins per user, which is
// what makes concurrent presence updates safe without cross-user ordering.
func (r *presenceRepository) Upsert(ctx context.Context, presence *domain.UserPresence) error {
	if presence.LastActivity.IsZero() {
		presence.LastActivity = time.Now()
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_name", "user_role", "current_page", "current_section",
			"is_active", "session_id", "metadata", "last_activity",
		}),
	}).Create(presence).Error
}

// GetByPage returns every presence row for the page, inactive rows included.
// Filtering to active users is the caller's concern.
func (r *presenceRepository) GetByPage(ctx context.Context, page string) ([]domain.UserPresence, error) {
	var presences []domain.UserPresence
	err := r.db.WithContext(ctx).
		Where("current_page = ?", page).
		Order("last_activity DESC").
		Find(&presences).Error
	return presences, err
}

func (r *presenceRepository) GetByUser(ctx context.Context, userID string) (*domain.UserPresence, error) {
	var presence domain.UserPresence
	err := r.db.WithContext(ctx).First(&presence, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &presence, nil
}

func (r *presenceRepository) MarkInactive(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&domain.UserPresence{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"is_active":     false,
			"last_activity": time.Now(),
		}).Error
}
