// Package account implements the identity service: registration, login,
// token refresh, password change and profile maintenance.
//
// Every failure meant for a client is an *autherr.Error. Anything else
// (store connectivity, hashing failures) is returned wrapped with the
// operation name and must be treated as an internal error by the caller.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"chatbot/cmd/identity"
	"chatbot/cmd/internal/auth/autherr"
	"chatbot/cmd/internal/auth/session"
	"chatbot/cmd/security/password"
)

// MinUsernameLength is counted in characters.
const MinUsernameLength = 3

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenIssuer mints and verifies session tokens.
type TokenIssuer interface {
	IssuePair(sub session.Subject, now time.Time) (session.Pair, error)
	Verify(token string, kind session.Kind, now time.Time) (session.Claims, error)
}

// PasswordHasher hashes and checks passwords under a policy.
type PasswordHasher interface {
	Validate(pw string) error
	Hash(pw string) (string, error)
	// HashRaw hashes without the policy check.
	HashRaw(pw string) (string, error)
	Verify(encodedHash, pw string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// AuthResult is returned by every operation that authenticates a caller.
type AuthResult struct {
	User         identity.User
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access-token lifetime in seconds.
	ExpiresIn int64
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

// ChangePasswordInput is the password change request.
type ChangePasswordInput struct {
	Current string
	New     string
	Confirm string
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Avatar   *string
}

// Service implements the identity operations on top of a Store.
type Service struct {
	store  identity.Store
	tokens TokenIssuer
	hasher PasswordHasher

	log *slog.Logger
	now func() time.Time

	dummyHash string
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. All three dependencies are required.
func NewService(store identity.Store, tokens TokenIssuer, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if store == nil || tokens == nil || hasher == nil {
		return nil, errors.New("account: nil dependency")
	}

	s := &Service{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	// Dummy hash for timing-resistant login checks.
	h, err := hasher.HashRaw("dummy-password-for-timing-only")
	if err != nil {
		return nil, fmt.Errorf("account: dummy hash: %w", err)
	}
	s.dummyHash = h

	return s, nil
}

// Register validates the request, creates the account and returns a token pair.
// All validation happens before the store is touched.
func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	const op = "account.Register"

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)

	if email == "" || username == "" || in.Password == "" || in.ConfirmPassword == "" {
		return AuthResult{}, autherr.ErrMissingFields
	}
	if err := s.validatePassword(in.Password); err != nil {
		return AuthResult{}, err
	}
	if in.Password != in.ConfirmPassword {
		return AuthResult{}, autherr.ErrPasswordMismatch
	}
	if !emailRe.MatchString(email) {
		return AuthResult{}, autherr.ErrInvalidEmail
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return AuthResult{}, autherr.ErrInvalidUsername
	}

	taken, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return AuthResult{}, autherr.ErrEmailExists
	}
	taken, err = s.store.UsernameExists(ctx, username, "")
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return AuthResult{}, autherr.ErrUsernameExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: hash: %w", op, err)
	}

	now := s.now()
	user, err := s.store.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		// Lost a race with a concurrent registration.
		switch identity.ConflictField(err) {
		case "email":
			return AuthResult{}, autherr.ErrEmailExists
		case "username":
			return AuthResult{}, autherr.ErrUsernameExists
		}
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("auth.register.ok", "user_id", user.ID)
	return s.issue(op, user, now)
}

// Login authenticates by email and password.
// Unknown email, wrong password and inactive account are indistinguishable.
func (s *Service) Login(ctx context.Context, email, pw string) (AuthResult, error) {
	const op = "account.Login"

	email = strings.TrimSpace(email)
	if email == "" || pw == "" {
		return AuthResult{}, autherr.ErrMissingFields
	}

	ua, err := s.store.GetUserAuthByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			return AuthResult{}, fmt.Errorf("%s: %w", op, err)
		}
		// Timing resistance: perform a dummy verify when user is missing.
		_, _ = s.hasher.Verify(s.dummyHash, pw)
		s.log.Info("auth.login.fail", "reason", "not_found")
		return AuthResult{}, autherr.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ua.PasswordHash, pw)
	if err != nil {
		s.log.Error("auth.login.hash_invalid", "user_id", ua.User.ID, "err", err)
		return AuthResult{}, autherr.ErrInvalidCredentials
	}
	if !ok {
		s.log.Info("auth.login.fail", "reason", "bad_password", "user_id", ua.User.ID)
		return AuthResult{}, autherr.ErrInvalidCredentials
	}
	if !ua.User.Active {
		s.log.Info("auth.login.fail", "reason", "inactive", "user_id", ua.User.ID)
		return AuthResult{}, autherr.ErrInvalidCredentials
	}

	now := s.now()
	if s.hasher.NeedsRehash(ua.PasswordHash) {
		s.rehash(ctx, ua.User.ID, pw, now)
	}

	s.log.Info("auth.login.ok", "user_id", ua.User.ID)
	return s.issue(op, ua.User, now)
}

// Refresh exchanges a valid refresh token for a brand-new pair.
// The presented token is not revoked; tokens are stateless.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	const op = "account.Refresh"

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, autherr.ErrMissingRefreshToken
	}

	now := s.now()
	claims, err := s.tokens.Verify(refreshToken, session.KindRefresh, now)
	if err != nil {
		s.log.Info("auth.refresh.fail", "reason", err.Error())
		return AuthResult{}, autherr.ErrInvalidRefreshToken
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if identity.IsNotFound(err) {
			return AuthResult{}, autherr.ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.Active {
		return AuthResult{}, autherr.ErrUserNotFound
	}

	return s.issue(op, user, now)
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	const op = "account.ChangePassword"

	if in.Current == "" || in.New == "" || in.Confirm == "" {
		return autherr.ErrMissingFields
	}
	if in.New != in.Confirm {
		return autherr.ErrPasswordMismatch
	}
	if err := s.validatePassword(in.New); err != nil {
		return err
	}

	ua, err := s.store.GetUserAuthByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return autherr.ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(ua.PasswordHash, in.Current)
	if err != nil || !ok {
		return autherr.ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(in.New)
	if err != nil {
		return fmt.Errorf("%s: hash: %w", op, err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash, s.now()); err != nil {
		if identity.IsNotFound(err) {
			return autherr.ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("auth.password.changed", "user_id", userID)
	return nil
}

// UpdateProfile applies username and avatar changes.
// A new username is re-checked for uniqueness excluding the caller's own row.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (identity.User, error) {
	const op = "account.UpdateProfile"

	if in.Username == nil && in.Avatar == nil {
		return s.Profile(ctx, userID)
	}

	upd := identity.ProfileUpdate{Avatar: in.Avatar, Now: s.now()}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if utf8.RuneCountInString(username) < MinUsernameLength {
			return identity.User{}, autherr.ErrInvalidUsername
		}
		taken, err := s.store.UsernameExists(ctx, username, userID)
		if err != nil {
			return identity.User{}, fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			return identity.User{}, autherr.ErrUsernameExists
		}
		upd.Username = &username
	}

	user, err := s.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			return identity.User{}, autherr.ErrUserNotFound
		case identity.ConflictField(err) == "username":
			return identity.User{}, autherr.ErrUsernameExists
		}
		return identity.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Profile returns the public projection of userID.
func (s *Service) Profile(ctx context.Context, userID string) (identity.User, error) {
	const op = "account.Profile"

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, autherr.ErrUserNotFound
		}
		return identity.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Service) validatePassword(pw string) error {
	switch err := s.hasher.Validate(pw); {
	case err == nil:
		return nil
	case errors.Is(err, password.ErrPasswordTooLong):
		return autherr.ErrWeakPassword.WithMessage(
			fmt.Sprintf("Password must be at most %d bytes long", password.MaxBytes))
	case errors.Is(err, password.ErrWeakPassword):
		return autherr.ErrWeakPassword.WithMessage("Password is too easy to guess")
	default:
		return autherr.ErrWeakPassword
	}
}

func (s *Service) rehash(ctx context.Context, userID, pw string, now time.Time) {
	// The password already matched, so a policy tightened since then must not block the upgrade.
	hash, err := s.hasher.HashRaw(pw)
	if err != nil {
		s.log.Warn("auth.login.rehash.fail", "user_id", userID, "err", err)
		return
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash, now); err != nil {
		s.log.Warn("auth.login.rehash.fail", "user_id", userID, "err", err)
	}
}

func (s *Service) issue(op string, user identity.User, now time.Time) (AuthResult, error) {
	pair, err := s.tokens.IssuePair(session.Subject{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	}, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: issue tokens: %w", op, err)
	}
	return AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}
