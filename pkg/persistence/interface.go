package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique key is already taken
	ErrAlreadyExists = errors.New("already exists")
)

// PluginPersistence provides storage operations for persistence plugins.
// This is the main interface that all persistence backends must implement.
type PluginPersistence interface {
	// UserStorage returns the user storage implementation
	UserStorage() UserStorage

	// ModshipStorage returns the moderator relationship storage implementation
	ModshipStorage() ModshipStorage

	// Health checks if the persistence backend is healthy
	Health(ctx context.Context) error

	// Close releases resources held by the persistence backend
	Close() error
}

// UserStorage defines persistence operations for user accounts
type UserStorage interface {
	// Save creates a user. The email must not belong to another user.
	Save(ctx context.Context, user *domain.User) error

	// FindByID returns ErrNotFound when no user has the id
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByEmail matches the email case-insensitively
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ModshipStorage defines persistence operations for moderator relationships
type ModshipStorage interface {
	// Save stores a modship; saving the same user/leaderboard pair twice is a no-op
	Save(ctx context.Context, modship *domain.Modship) error

	// ListByUser returns every modship held by the user, possibly none
	ListByUser(ctx context.Context, userID string) ([]domain.Modship, error)
}
