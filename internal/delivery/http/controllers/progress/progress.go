package progress

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/delivery/http/controllers/middleware"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

type ProgressService interface {
	SaveProgress(ctx context.Context, userID uuid.UUID, rec models.ProgressRecord) (models.ProgressRecord, error)
	ListProgress(ctx context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error)
}

type ProgressHandler struct {
	log     logger.Log
	service ProgressService
}

func NewProgressHandler(log logger.Log, s ProgressService) *ProgressHandler {
	return &ProgressHandler{
		log:     log,
		service: s,
	}
}

// ListProgress returns the caller's records, optionally for one course.
func (h *ProgressHandler) ListProgress(c *gin.Context) {
	userID, ok := middleware.ClientID(c)
	if !ok {
		return
	}

	courseID := 0
	if s := c.Query("courseId"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "courseId must be a positive integer"})
			return
		}
		courseID = v
	}

	records, err := h.service.ListProgress(c.Request.Context(), userID, courseID)
	if err != nil {
		h.log.ErrorErr("failed to list progress", err, "user_id", userID.String())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load progress"})
		return
	}
	if records == nil {
		records = []models.ProgressRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// SaveProgress persists one record and answers with the stored version,
// which is the newer server copy when the submitted one is stale.
func (h *ProgressHandler) SaveProgress(c *gin.Context) {
	userID, ok := middleware.ClientID(c)
	if !ok {
		return
	}

	var rec models.ProgressRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid progress payload: " + err.Error()})
		return
	}

	saved, err := h.service.SaveProgress(c.Request.Context(), userID, rec)
	if err != nil {
		switch {
		case errors.Is(err, app_errors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, app_errors.ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		default:
			h.log.ErrorErr("failed to save progress", err, "user_id", userID.String(), "key", rec.Key().String())
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save progress"})
		}
		return
	}
	c.JSON(http.StatusOK, saved)
}
