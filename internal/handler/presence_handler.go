package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collab-service/internal/domain"
	"collab-service/internal/service"
)

type PresenceHandler struct {
	presenceService *service.PresenceService
	logger          *zap.Logger
}

func NewPresenceHandler(presenceService *service.PresenceService, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		logger:          logger,
	}
}

// GetPagePresence godoc
// @Summary      Get presence for a page
// @Description  Returns every presence row for the page, inactive users included
// @Tags         presence
// @Param        page path string true "Page key"
// @Success      200 {array} domain.UserPresence
// @Router       /presence/{page} [get]
func (h *PresenceHandler) GetPagePresence(c *gin.Context) {
	page := c.Param("page")

	presences, err := h.presenceService.GetByPage(c.Request.Context(), page)
	if err != nil {
		h.logger.Error("failed to get presence", zap.String("page", page), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to get presence"},
		})
		return
	}

	c.JSON(http.StatusOK, presences)
}

// UpsertPresence godoc
// @Summary      Upsert the caller's presence
// @Description  Writes the durable presence row keyed by userId. REST writes do not fan out; the socket path carries the push events.
// @Tags         presence
// @Param        request body UpsertPresenceRequest true "Presence"
// @Success      200 {object} domain.UserPresence
// @Router       /presence [post]
func (h *PresenceHandler) UpsertPresence(c *gin.Context) {
	var req UpsertPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": err.Error()},
		})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	presence := &domain.UserPresence{
		UserID:         req.UserID,
		UserName:       req.UserName,
		UserRole:       req.UserRole,
		CurrentPage:    req.CurrentPage,
		CurrentSection: req.CurrentSection,
		IsActive:       isActive,
		SessionID:      req.SessionID,
		Metadata:       req.Metadata,
		LastActivity:   time.Now(),
	}

	if err := h.presenceService.Upsert(c.Request.Context(), presence); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to upsert presence"},
		})
		return
	}

	c.JSON(http.StatusOK, presence)
}
