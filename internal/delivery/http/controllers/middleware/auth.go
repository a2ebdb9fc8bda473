package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

type AuthService interface {
	AccessClaims(ctx context.Context, token string) (userID uuid.UUID, roles []string, err error)
	User(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuthMiddlewareProvider struct {
	log      logger.Log
	service  AuthService
	sessions *SessionManager
}

func NewAuthMiddlewareProvider(log logger.Log, s AuthService, sessions *SessionManager) *AuthMiddlewareProvider {
	return &AuthMiddlewareProvider{
		log:      log,
		service:  s,
		sessions: sessions,
	}
}

// AuthMiddleware accepts a bearer token or, failing that, the session cookie.
func (h *AuthMiddlewareProvider) AuthMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	var userID uuid.UUID
	if token := bearerToken(c.GetHeader("Authorization")); token != "" {
		id, _, err := h.service.AccessClaims(ctx, token)
		if err != nil {
			h.log.Debug("rejected bearer token", "err", err)
			msg := "invalid token"
			if errors.Is(err, app_errors.ErrTokenExpired) {
				msg = app_errors.ErrTokenExpired.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
			return
		}
		userID = id
	} else {
		id, _, err := h.sessions.Load(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
			return
		}
		userID = id
	}

	// Roles are read from the user record, not from the token.
	user, err := h.service.User(ctx, userID)
	if err != nil {
		if !errors.Is(err, app_errors.ErrUserNotFound) {
			h.log.ErrorErr("failed to load authenticated user", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
		return
	}

	c.Set(ClientIDCtx, user.ID)
	c.Set(ClientRolesCtx, user.Roles)
	c.Next()
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
