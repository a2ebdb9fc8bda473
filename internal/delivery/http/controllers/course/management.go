package course

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/pkg/logger"
)

type ManagementService interface {
	Reindex(ctx context.Context) (int, error)
	UploadCourseLogo(ctx context.Context, courseID int, filename string, reader io.Reader, size int64, contentType string) (string, error)
}

type ManagementHandler struct {
	log     logger.Log
	service ManagementService
}

func NewManagementHandler(l logger.Log, s ManagementService) *ManagementHandler {
	return &ManagementHandler{
		log:     l,
		service: s,
	}
}

func (h *ManagementHandler) Reindex(c *gin.Context) {
	n, err := h.service.Reindex(c.Request.Context())
	if err != nil {
		if errors.Is(err, app_errors.ErrSearchDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
			return
		}
		h.log.ErrorErr("course reindex failed", err, "indexed", n)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "reindex failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": n})
}

func (h *ManagementHandler) UploadCourseLogo(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.log.ErrorErr("failed to open uploaded logo", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to read file"})
		return
	}
	defer file.Close()

	url, err := h.service.UploadCourseLogo(
		c.Request.Context(),
		courseID,
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		switch {
		case errors.Is(err, app_errors.ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		case errors.Is(err, app_errors.ErrFileSize):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": err.Error()})
		case errors.Is(err, app_errors.ErrNotImage):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, app_errors.ErrStorageDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		default:
			h.log.ErrorErr("failed to upload course logo", err, "course_id", courseID)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "upload failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
