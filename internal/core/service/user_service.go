package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/port"
)

// UserService provides user CRUD with a read-through cache on id lookups, the
// hot path used by the fulfillment consumer.
type UserService struct {
	repo   port.UserRepository
	cache  port.UserCache
	logger *zap.Logger
}

func NewUserService(repo port.UserRepository, cache port.UserCache, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, cache: cache, logger: logger}
}

func (s *UserService) CreateUser(ctx context.Context, name, email, password string) (*domain.User, error) {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	cached, err := s.cache.GetUser(ctx, id)
	if err != nil {
		s.logger.Warn("user cache read failed", zap.String("user_id", id), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	if err := s.cache.PutUser(ctx, *user); err != nil {
		s.logger.Warn("user cache fill failed", zap.String("user_id", id), zap.Error(err))
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id, name, email string) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	user.Name = name
	user.Email = email
	user.UpdatedAt = time.Now()
	if err := s.repo.UpdateUser(ctx, *user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	// Refresh rather than evict so the next lookup hits.
	if err := s.cache.PutUser(ctx, *user); err != nil {
		s.logger.Warn("user cache write failed", zap.String("user_id", id), zap.Error(err))
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.cache.EvictUser(ctx, id); err != nil {
		s.logger.Warn("user cache evict failed", zap.String("user_id", id), zap.Error(err))
	}
	return nil
}

// Authenticate verifies the email/password pair and returns the stored user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}
