package identity

import (
	"context"
	"time"
)

// User is the public projection of an account. It carries no credential material.
type User struct {
	ID       string
	Email    string
	Username string
	Avatar   *string
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth pairs a user with its password hash for credential checks only.
// It must never be serialized or logged.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a new account. PasswordHash is already hashed by the caller.
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
	Now          time.Time
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Avatar   *string
	Now      time.Time
}

// Store is the identity persistence boundary.
//
// Contract:
//   - Email and username uniqueness is case-insensitive; violations are ConflictError
//     with Field "email" or "username".
//   - Missing rows are NotFoundError (IsNotFound).
//   - Lookups by id return inactive users too; callers decide what "inactive" means.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserAuthByID(ctx context.Context, id string) (UserAuth, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	EmailExists(ctx context.Context, email string) (bool, error)
	// UsernameExists ignores the row with id excludeID (empty matches nothing).
	UsernameExists(ctx context.Context, username, excludeID string) (bool, error)

	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
	UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error)
}
