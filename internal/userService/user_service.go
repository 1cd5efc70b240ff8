package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"
)

// MinPasswordLength is the shortest password Register accepts
const MinPasswordLength = 6

const (
	profileCacheExp     = 5 * time.Minute
	profileCacheCleanup = 10 * time.Minute
)

// TokenIssuer signs session tokens for authenticated users
type TokenIssuer interface {
	GenerateToken(userID, email string) (string, error)
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// UserService handles registration, login and profile lookups
type UserService struct {
	repo     repository.UserStore
	tokens   TokenIssuer
	hashCost int
	now      func() time.Time
	profiles *cache.Cache // key: "user:<id>" -> models.User
}

// NewUserService creates a new UserService instance
func NewUserService(repo repository.UserStore, tokens TokenIssuer) *UserService {
	return &UserService{
		repo:     repo,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
		profiles: cache.New(profileCacheExp, profileCacheCleanup),
	}
}

// WithHashCost overrides the bcrypt cost, mostly to keep tests fast
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

// Register creates a user with a bcrypt-hashed password
func (s *UserService) Register(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return models.User{}, fmt.Errorf("service: %w - name, email and password are required", biddingerrors.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, fmt.Errorf("service: %w - malformed email address", biddingerrors.ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return models.User{}, fmt.Errorf("service: %w - password must be at least %d characters", biddingerrors.ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		// passwords longer than 72 bytes end up here
		return models.User{}, fmt.Errorf("service: %w - %v", biddingerrors.ErrInvalidInput, err)
	}

	user := models.User{
		UserID:       utils.GenerateID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to register %s: %w", email, err)
	}
	return user, nil
}

// Login checks credentials and issues a session token
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("service: %w - email and password are required", biddingerrors.ErrInvalidInput)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, biddingerrors.ErrUserNotFound) {
		return LoginResult{}, fmt.Errorf("service: %w", biddingerrors.ErrInvalidCredentials)
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("service: failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, fmt.Errorf("service: %w", biddingerrors.ErrInvalidCredentials)
	}

	token, err := s.tokens.GenerateToken(user.UserID, user.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("service: failed to issue token: %w", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

// Profile returns the user record behind an authenticated request.
// Users are immutable once registered, so lookups are served from a short-lived cache.
func (s *UserService) Profile(ctx context.Context, userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, fmt.Errorf("service: %w - missing user", biddingerrors.ErrUnauthorized)
	}

	cacheKey := "user:" + userID
	if cached, found := s.profiles.Get(cacheKey); found {
		if user, ok := cached.(models.User); ok {
			return user, nil
		}
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("service: failed to load profile %s: %w", userID, err)
	}
	s.profiles.Set(cacheKey, user, cache.DefaultExpiration)
	return user, nil
}
