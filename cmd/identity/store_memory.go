package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured.
// It is safe for concurrent use; data is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[string]*memoryUser // by id
	byEmail    map[string]string      // email_norm -> id
	byUsername map[string]string      // username_norm -> id
}

type memoryUser struct {
	user User
	hash string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*memoryUser),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// CreateUser stores a new user. Uniqueness is checked under the write lock.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	switch {
	case email == "":
		return User{}, invalid(op, "email is required")
	case username == "":
		return User{}, invalid(op, "username is required")
	case in.PasswordHash == "":
		return User{}, invalid(op, "password hash is required")
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	emailNorm, usernameNorm := NormalizeEmail(email), NormalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[emailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	if _, taken := s.byUsername[usernameNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "username"}
	}

	u := User{
		ID:        id,
		Email:     email,
		Username:  username,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[id] = &memoryUser{user: u, hash: in.PasswordHash}
	s.byEmail[emailNorm] = id
	s.byUsername[usernameNorm] = id

	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	ua, err := s.GetUserAuthByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return ua.User, nil
}

func (s *MemoryStore) GetUserAuthByID(ctx context.Context, id string) (UserAuth, error) {
	const op = "identity.GetUserAuthByID"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return UserAuth{}, userNotFound(op)
	}
	return UserAuth{User: cloneUser(mu.user), PasswordHash: mu.hash}, nil
}

func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, userNotFound(op)
	}
	mu := s.users[id]
	return UserAuth{User: cloneUser(mu.user), PasswordHash: mu.hash}, nil
}

func (s *MemoryStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[NormalizeEmail(email)]
	return ok, nil
}

func (s *MemoryStore) UsernameExists(ctx context.Context, username, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[NormalizeUsername(username)]
	return ok && id != strings.TrimSpace(excludeID), nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if hash == "" {
		return invalid(op, "password hash is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return userNotFound(op)
	}
	mu.hash = hash
	mu.user.UpdatedAt = now
	return nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	const op = "identity.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return User{}, userNotFound(op)
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return User{}, invalid(op, "username is empty")
		}
		newNorm := NormalizeUsername(username)
		if owner, taken := s.byUsername[newNorm]; taken && owner != mu.user.ID {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		delete(s.byUsername, NormalizeUsername(mu.user.Username))
		s.byUsername[newNorm] = mu.user.ID
		mu.user.Username = username
	}

	if in.Avatar != nil {
		if a := strings.TrimSpace(*in.Avatar); a != "" {
			mu.user.Avatar = &a
		} else {
			mu.user.Avatar = nil
		}
	}

	mu.user.UpdatedAt = now
	return cloneUser(mu.user), nil
}

// SetActive toggles the active flag. Used by admin tooling and tests.
func (s *MemoryStore) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return userNotFound("identity.SetActive")
	}
	mu.user.Active = active
	return nil
}

// Delete removes a user. Used by tests to simulate an account vanishing.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.byEmail, NormalizeEmail(mu.user.Email))
	delete(s.byUsername, NormalizeUsername(mu.user.Username))
	delete(s.users, id)
}

func cloneUser(u User) User {
	if u.Avatar != nil {
		a := *u.Avatar
		u.Avatar = &a
	}
	return u
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
