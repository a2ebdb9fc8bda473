package course

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

type QueryService interface {
	ListCourses(ctx context.Context) ([]models.CoursePreview, error)
	CourseByID(ctx context.Context, id int) (*models.CoursePreview, error)
	SearchCourses(ctx context.Context, query string, limit int) ([]models.CoursePreview, error)
}

type QueryHandler struct {
	log     logger.Log
	service QueryService
}

func NewQueryHandler(log logger.Log, s QueryService) *QueryHandler {
	return &QueryHandler{
		log:     log,
		service: s,
	}
}

func (h *QueryHandler) ListCourses(c *gin.Context) {
	courses, err := h.service.ListCourses(c.Request.Context())
	if err != nil {
		h.log.ErrorErr("failed to list courses", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load courses"})
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *QueryHandler) CourseByID(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	course, err := h.service.CourseByID(c.Request.Context(), courseID)
	if err != nil {
		if errors.Is(err, app_errors.ErrCourseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		}
		h.log.ErrorErr("failed to load course", err, "course_id", courseID)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load course"})
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *QueryHandler) SearchCourses(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = v
	}

	courses, err := h.service.SearchCourses(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.log.ErrorErr("course search failed", err, "query", c.Query("q"))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "search failed"})
		return
	}
	c.JSON(http.StatusOK, courses)
}

func courseIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("course_id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid course_id"})
		return 0, false
	}
	return id, true
}
