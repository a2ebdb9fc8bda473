package enrollment

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/delivery/http/controllers/middleware"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

type EnrollmentService interface {
	Enroll(ctx context.Context, userID uuid.UUID, courseID int) (models.Enrollment, error)
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
	EnrollmentProgress(ctx context.Context, userID uuid.UUID) ([]models.CourseProgress, error)
}

type EnrollmentHandler struct {
	log     logger.Log
	service EnrollmentService
}

func NewEnrollmentHandler(log logger.Log, s EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:     log,
		service: s,
	}
}

func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	userID, ok := middleware.ClientID(c)
	if !ok {
		return
	}
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), userID)
	if err != nil {
		h.log.ErrorErr("failed to list enrollments", err, "user_id", userID.String())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load enrollments"})
		return
	}
	if enrollments == nil {
		enrollments = []models.Enrollment{}
	}
	c.JSON(http.StatusOK, enrollments)
}

func (h *EnrollmentHandler) EnrollmentProgress(c *gin.Context) {
	userID, ok := middleware.ClientID(c)
	if !ok {
		return
	}
	progress, err := h.service.EnrollmentProgress(c.Request.Context(), userID)
	if err != nil {
		h.log.ErrorErr("failed to compute enrollment progress", err, "user_id", userID.String())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load progress"})
		return
	}
	if progress == nil {
		progress = []models.CourseProgress{}
	}
	c.JSON(http.StatusOK, progress)
}

func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	userID, ok := middleware.ClientID(c)
	if !ok {
		return
	}

	var input models.EnrollRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": app_errors.ErrCourseRequired.Error()})
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), userID, input.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, app_errors.ErrCourseRequired):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, app_errors.ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		case errors.Is(err, app_errors.ErrAlreadyEnrolled):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		default:
			h.log.ErrorErr("failed to enroll", err, "user_id", userID.String(), "course_id", input.CourseID)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to enroll"})
		}
		return
	}
	c.JSON(http.StatusCreated, enrollment)
}
