package services

import (
	"context"
	stderrors "errors"

	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/repositories"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService manages backoffice accounts
type UserService struct {
	userRepo *repositories.UserRepository
	cost     int
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, readOnlyDB *gorm.DB) *UserService {
	return &UserService{
		userRepo: repositories.NewUserRepository(db, readOnlyDB),
		cost:     bcrypt.DefaultCost,
	}
}

// CreateUser stores a user with a bcrypt hash of password
func (s *UserService) CreateUser(ctx context.Context, email, name, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("User created")
	return user, nil
}

// GetUser loads a user by ID
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Authenticate checks a password against the stored hash
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
