package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JSONMap is an open key-value bag stored as JSON. The core never interprets
// its contents; it exists for client-side extension (cursor positions etc).
type JSONMap = datatypes.JSONMap

// UserPresence is the durable record of a user's last-known location.
// Exactly one row per user: presence writes are upserts keyed by UserID,
// and rows are never hard-deleted, only flipped inactive.
type UserPresence struct {
	UserID         string    `gorm:"type:varchar(64);primaryKey" json:"userId"`
	UserName       string    `gorm:"type:varchar(100);not null" json:"userName"`
	UserRole       string    `gorm:"type:varchar(50)" json:"userRole"`
	CurrentPage    string    `gorm:"type:varchar(255);not null;index" json:"currentPage"`
	CurrentSection string    `gorm:"type:varchar(255)" json:"currentSection,omitempty"`
	IsActive       bool      `gorm:"default:true" json:"isActive"`
	SessionID      string    `gorm:"type:varchar(64)" json:"sessionId,omitempty"`
	Metadata       JSONMap   `gorm:"type:jsonb" json:"metadata,omitempty"`
	LastActivity   time.Time `gorm:"type:timestamptz;default:now();not null" json:"lastActivity"`
}

func (UserPresence) TableName() string {
	return "user_presences"
}

// CollaborationActivity is an append-only record of a user action tied to a
// page or entity. TargetEntity doubles as the fan-out routing key.
type CollaborationActivity struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"type:varchar(64);not null;index" json:"userId"`
	UserName     string    `gorm:"type:varchar(100);not null" json:"userName"`
	ActivityType string    `gorm:"type:varchar(50);not null" json:"activityType"`
	TargetEntity string    `gorm:"type:varchar(255);not null;index:idx_activity_entity_created" json:"targetEntity"`
	TargetID     string    `gorm:"type:varchar(255)" json:"targetId,omitempty"`
	Description  string    `gorm:"type:text" json:"description"`
	Metadata     JSONMap   `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time `gorm:"type:timestamptz;default:now();not null;index:idx_activity_entity_created" json:"timestamp"`
}

func (CollaborationActivity) TableName() string {
	return "collaboration_activities"
}

// CollaborationNotification is a per-user queued notification with read state.
type CollaborationNotification struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string     `gorm:"type:varchar(64);not null;index:idx_notification_user_read" json:"userId"`
	Payload   JSONMap    `gorm:"type:jsonb" json:"payload"`
	IsRead    bool       `gorm:"default:false;index:idx_notification_user_read" json:"isRead"`
	ReadAt    *time.Time `gorm:"type:timestamptz" json:"readAt,omitempty"`
	CreatedAt time.Time  `gorm:"type:timestamptz;default:now();not null" json:"createdAt"`
}

func (CollaborationNotification) TableName() string {
	return "collaboration_notifications"
}
