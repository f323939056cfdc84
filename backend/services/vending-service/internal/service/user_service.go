package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
)

// UserService manages snack bar users.
type UserService struct {
	repo   UserStore
	logger *zap.Logger
}

// NewUserService builds UserService.
func NewUserService(repo UserStore, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// Create registers a user. Emails are stored lower-cased and must be unique.
func (s *UserService) Create(ctx context.Context, name, email string, isAdmin bool) (*models.User, error) {
	user := &models.User{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(name),
		Email:   strings.ToLower(strings.TrimSpace(email)),
		IsAdmin: isAdmin,
	}
	if err := user.Validate(); err != nil {
		return nil, validationError(err)
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, classify("create user", err)
	}

	s.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.Bool("admin", user.IsAdmin))
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return nil, classify("find user", err)
	}
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, classify("list users", err)
	}
	return users, nil
}
