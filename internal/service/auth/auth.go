package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

type AuthRepo interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	UserByName(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuthService struct {
	log        logger.Log
	jwtManager *JWTManager
	authRepo   AuthRepo
}

func NewAuthService(l logger.Log, manager *JWTManager, aRepo AuthRepo) *AuthService {
	return &AuthService{
		log:        l,
		jwtManager: manager,
		authRepo:   aRepo,
	}
}

// CreateUser registers a learner. Roles from the request are ignored.
func (u *AuthService) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	if user.Username == "" {
		return nil, fmt.Errorf("%w: username is required", app_errors.ErrValidation)
	}
	if len(user.Password) < minPasswordLen || len(user.Password) > maxPasswordLen {
		return nil, fmt.Errorf("%w: password must be %d to %d characters", app_errors.ErrValidation, minPasswordLen, maxPasswordLen)
	}

	hash, err := hashPassword(user.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hash
	user.Roles = []string{models.ClientRole}

	created, err := u.authRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	u.log.Info("user registered", "user_id", created.ID.String())
	return created, nil
}

// LoginUser checks the credentials and issues an access token.
func (u *AuthService) LoginUser(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := u.authRepo.UserByName(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, app_errors.ErrUserNotFound) {
			return nil, "", app_errors.ErrIncorrectPassword
		}
		return nil, "", err
	}
	if !checkPasswordHash(password, user.Password) {
		return nil, "", app_errors.ErrIncorrectPassword
	}

	token, err := u.jwtManager.Generate(user.ID, user.Roles)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (u *AuthService) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return u.authRepo.UserByID(ctx, id)
}

// AccessClaims validates a bearer token and returns who it was issued to.
func (u *AuthService) AccessClaims(_ context.Context, token string) (uuid.UUID, []string, error) {
	claims, err := u.jwtManager.ParseAccess(token)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return claims.UserID, claims.Roles, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
