package store

import (
	"context"
	"errors"

	"github.com/mveljko/gatehouse/internal/gatehouse/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now,
// postgres later) implement this. It exposes sub-repositories to keep
// concerns tidy and testable.
type Store interface {
	Users() Users
	Attempts() Attempts

	// ApplyMigrations brings the schema up to date using embedded migration
	// files compiled into the binary.
	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// Exists reports whether a user with the given username or email is
	// already registered. Used by registration to reject duplicates before
	// hitting the unique constraints.
	Exists(ctx context.Context, username, email string) (bool, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists on a username or email collision.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateTOTP stores the TOTP secret and enables two-factor auth.
	UpdateTOTP(ctx context.Context, userID string, secret string) error
}

type Attempts interface {
	// Log records an authentication attempt. userID is nil when the
	// submitted username matched no account.
	Log(ctx context.Context, a domain.Attempt) error
}
