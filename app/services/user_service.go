// Package services holds the demo application's business logic. Handlers
// resolve these services from the container per request rather than
// capturing them at registration time.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/setulabs/setu/app/models"
	"github.com/setulabs/setu/app/repositories"
	"github.com/setulabs/setu/pkg/auth"
	"github.com/setulabs/setu/pkg/cache"
	"github.com/setulabs/setu/pkg/event"
	"github.com/setulabs/setu/pkg/logger"
)

// EventUserCreated is published on the bus after a user is persisted.
// The payload is the created models.User.
const EventUserCreated = "user.created"

// ErrInvalidCredentials is returned by Authenticate for a wrong password.
// The not-found case is folded in so callers leak nothing about which
// part failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// userCacheTTL bounds staleness for cache-aside id lookups.
const userCacheTTL = 5 * time.Minute

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// UserService backs the users module: repository for persistence, cache
// store for id lookups, bcrypt for passwords.
type UserService struct {
	repo   repositories.UserRepository
	store  cache.Store
	events *event.Bus
}

// Option configures optional service collaborators.
type Option func(*UserService)

// WithEvents makes the service publish lifecycle events on bus.
func WithEvents(bus *event.Bus) Option {
	return func(s *UserService) { s.events = bus }
}

// NewUserService wires a UserService. store may be nil, which disables
// caching.
func NewUserService(repo repositories.UserRepository, store cache.Store, opts ...Option) *UserService {
	s := &UserService{repo: repo, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the fields accepted when registering a user.
type CreateInput struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"`
}

// Create hashes the password and persists a new user. The stored record
// is cached for subsequent Get calls.
func (s *UserService) Create(in CreateInput) (models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("users: hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = "user"
	}

	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(&user); err != nil {
		return models.User{}, fmt.Errorf("users: create: %w", err)
	}

	s.cachePut(user)
	if s.events != nil {
		s.events.Publish(EventUserCreated, user)
	}
	return user, nil
}

// Get returns the user with the given id, serving from the cache when it
// can. Cached copies have been through a JSON round-trip and so carry no
// password hash; they serve display paths only.
func (s *UserService) Get(id uint) (models.User, error) {
	var user models.User
	if s.store != nil && s.store.Get(cacheKey(id), &user) {
		return user, nil
	}

	user, err := s.repo.FindByID(id)
	if err != nil {
		return models.User{}, err
	}
	s.cachePut(user)
	return user, nil
}

// List returns users ordered by id. A non-positive limit falls back to
// the default page size.
func (s *UserService) List(limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.All(limit, offset)
}

// Authenticate checks the credentials and mints a token carrying the
// user's id and role. Lookups always hit the repository; cached copies
// carry no hash.
func (s *UserService) Authenticate(email, password string) (string, error) {
	user, err := s.repo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("users: authenticate: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	return auth.GenerateToken(fmt.Sprint(user.ID), user.Role)
}

func (s *UserService) cachePut(user models.User) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(cacheKey(user.ID), user, userCacheTTL); err != nil {
		logger.Warn("user cache set failed", "id", user.ID, "err", err)
	}
}

func cacheKey(id uint) string {
	return fmt.Sprintf("users:%d", id)
}
