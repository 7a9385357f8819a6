package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collab-service/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// ListNotifications godoc
// @Summary      List a user's notifications
// @Tags         notifications
// @Param        userId path string true "User ID"
// @Success      200 {array} domain.CollaborationNotification
// @Router       /notifications/{userId} [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID := c.Param("userId")

	notifications, err := h.notificationService.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list notifications"},
		})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// MarkNotificationsRead godoc
// @Summary      Mark notifications read
// @Description  Marks the listed notifications read, or all of the user's notifications when the list is omitted
// @Tags         notifications
// @Param        userId  path string true "User ID"
// @Param        request body MarkReadRequest false "Notification IDs"
// @Success      200 {object} map[string]interface{}
// @Router       /notifications/{userId}/read [patch]
func (h *NotificationHandler) MarkNotificationsRead(c *gin.Context) {
	userID := c.Param("userId")

	var req MarkReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "BAD_REQUEST", "message": err.Error()},
			})
			return
		}
	}

	count, err := h.notificationService.MarkRead(c.Request.Context(), userID, req.NotificationIDs)
	if err != nil {
		h.logger.Error("failed to mark notifications read", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to mark notifications read"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": count,
	})
}

// GetUnreadCount godoc
// @Summary      Get a user's unread notification count
// @Tags         notifications
// @Param        userId path string true "User ID"
// @Success      200 {object} map[string]interface{}
// @Router       /notifications/{userId}/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := c.Param("userId")

	count, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get unread count", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to get unread count"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
