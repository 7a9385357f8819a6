package handler

import (
	"github.com/google/uuid"

	"collab-service/internal/domain"
)

// UpsertPresenceRequest is the REST body for "set my presence". Identity is
// supplied by the caller and trusted as-is; the auth system owns it upstream.
type UpsertPresenceRequest struct {
	UserID         string         `json:"userId" binding:"required"`
	UserName       string         `json:"userName" binding:"required"`
	UserRole       string         `json:"userRole"`
	CurrentPage    string         `json:"currentPage" binding:"required"`
	CurrentSection string         `json:"currentSection,omitempty"`
	IsActive       *bool          `json:"isActive,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	Metadata       domain.JSONMap `json:"metadata,omitempty"`
}

type AppendActivityRequest struct {
	UserID       string         `json:"userId" binding:"required"`
	UserName     string         `json:"userName" binding:"required"`
	ActivityType string         `json:"activityType" binding:"required"`
	TargetEntity string         `json:"targetEntity" binding:"required"`
	TargetID     string         `json:"targetId,omitempty"`
	Description  string         `json:"description"`
	Metadata     domain.JSONMap `json:"metadata,omitempty"`
}

// MarkReadRequest marks notifications read. An omitted or empty id list means
// "all of this user's notifications".
type MarkReadRequest struct {
	NotificationIDs []uuid.UUID `json:"notificationIds,omitempty"`
}
