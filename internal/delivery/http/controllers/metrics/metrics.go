package metrics

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ChainAcademy/internal/delivery/http/controllers/middleware"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

type MetricsService interface {
	UserMetrics(ctx context.Context, userID uuid.UUID) (models.UserMetrics, error)
}

type MetricsHandler struct {
	log     logger.Log
	service MetricsService
}

func NewMetricsHandler(log logger.Log, s MetricsService) *MetricsHandler {
	return &MetricsHandler{log: log, service: s}
}

func (h *MetricsHandler) UserMetrics(c *gin.Context) {
	userID, ok := middleware.ClientID(c)
	if !ok {
		return
	}
	m, err := h.service.UserMetrics(c.Request.Context(), userID)
	if err != nil {
		h.log.ErrorErr("failed to compute user metrics", err, "user_id", userID.String())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load metrics"})
		return
	}
	c.JSON(http.StatusOK, m)
}
