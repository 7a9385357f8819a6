package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collab-service/internal/domain"
	"collab-service/internal/service"
)

type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// ListActivities godoc
// @Summary      List recent activities
// @Description  Newest-first bounded snapshot for an entity; re-poll for freshness
// @Tags         activities
// @Param        page  query string false "Target entity key"
// @Param        limit query int    false "Max rows"
// @Success      200 {array} domain.CollaborationActivity
// @Router       /activities [get]
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	targetEntity := c.Query("page")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	activities, err := h.activityService.List(c.Request.Context(), targetEntity, limit)
	if err != nil {
		h.logger.Error("failed to list activities",
			zap.String("targetEntity", targetEntity),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list activities"},
		})
		return
	}

	c.JSON(http.StatusOK, activities)
}

// AppendActivity godoc
// @Summary      Append an activity
// @Description  Durable REST write; the socket activity_broadcast carries the low-latency fan-out
// @Tags         activities
// @Param        request body AppendActivityRequest true "Activity"
// @Success      201 {object} domain.CollaborationActivity
// @Router       /activities [post]
func (h *ActivityHandler) AppendActivity(c *gin.Context) {
	var req AppendActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": err.Error()},
		})
		return
	}

	activity := &domain.CollaborationActivity{
		UserID:       req.UserID,
		UserName:     req.UserName,
		ActivityType: req.ActivityType,
		TargetEntity: req.TargetEntity,
		TargetID:     req.TargetID,
		Description:  req.Description,
		Metadata:     req.Metadata,
		CreatedAt:    time.Now(),
	}

	if err := h.activityService.Record(c.Request.Context(), activity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to append activity"},
		})
		return
	}

	c.JSON(http.StatusCreated, activity)
}
