// Package repositories holds the persistence layer behind the demo
// services. UserRepository is deliberately small so the database-backed
// implementation and the in-memory one are interchangeable.
package repositories

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/setulabs/setu/app/models"
	"github.com/setulabs/setu/pkg/orm"
)

// ErrUserNotFound is returned when a lookup matches no user.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned when a create collides with an existing email.
var ErrEmailTaken = errors.New("email already taken")

// UserRepository handles persistence for User records.
type UserRepository interface {
	FindByID(id uint) (models.User, error)
	FindByEmail(email string) (models.User, error)
	Create(user *models.User) error
	All(limit, offset int) ([]models.User, error)
}

// ─── Database-backed implementation ──────────────────────────────────────────

// Gorm is the database-backed UserRepository.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// FindByID looks up a user by primary key.
func (r *Gorm) FindByID(id uint) (models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
	}
	return user, err
}

// FindByEmail looks up a user by their email address.
func (r *Gorm) FindByEmail(email string) (models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, fmt.Errorf("%w: email %s", ErrUserNotFound, email)
	}
	return user, err
}

// Create persists a new user record.
func (r *Gorm) Create(user *models.User) error {
	err := r.db.Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
	}
	return err
}

// All returns users ordered by id with limit/offset pagination.
func (r *Gorm) All(limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.Scopes(orm.ByID(), orm.Page(limit, offset)).Find(&users).Error
	return users, err
}

// ─── In-memory implementation ────────────────────────────────────────────────

// Memory is a map-backed UserRepository. The example program uses it to
// run the users module without a database, and module tests use it as a
// fake.
type Memory struct {
	mu     sync.RWMutex
	nextID uint
	users  map[uint]models.User
}

func NewMemory() *Memory {
	return &Memory{nextID: 1, users: make(map[uint]models.User)}
}

func (m *Memory) FindByID(id uint) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
	}
	return user, nil
}

func (m *Memory) FindByEmail(email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("%w: email %s", ErrUserNotFound, email)
}

func (m *Memory) Create(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = *user
	return nil
}

// Delete removes a user by id. Only the in-memory implementation has
// one; tests use it to punch holes behind the cache.
func (m *Memory) Delete(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, id)
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) All(limit, offset int) ([]models.User, error) {
	m.mu.RLock()
	users := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	m.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	if offset >= len(users) {
		return nil, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}
