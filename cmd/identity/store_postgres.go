package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"chatbot/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are quoted through pgx.Identifier.
// - Unique violations are mapped to ConflictError by constraint name.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "chatbot").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "chatbot",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const pgUserColumns = `u.id, u.email, u.username, u.avatar, u.is_active, u.created_at, u.updated_at`

// CreateUser inserts the user row and its credential row in one transaction.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (
		     id, email, email_norm, username, username_norm, is_active, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)`,
		userID, email, NormalizeEmail(email), username, NormalizeUsername(username), now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("user_credentials")+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		userID, in.PasswordHash, now,
	)
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return User{
		ID:        userID,
		Email:     email,
		Username:  username,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUserByID returns the user with the given id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if !ids.IsULID(strings.TrimSpace(id)) {
		return User{}, userNotFound(op)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM `+s.table("users")+` u WHERE u.id = $1`,
		strings.TrimSpace(id),
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserAuthByID returns the user and its password hash.
func (s *PostgresStore) GetUserAuthByID(ctx context.Context, id string) (UserAuth, error) {
	const op = "identity.GetUserAuthByID"

	if !ids.IsULID(strings.TrimSpace(id)) {
		return UserAuth{}, userNotFound(op)
	}
	return s.getUserAuth(ctx, op, `u.id = $1`, strings.TrimSpace(id))
}

// GetUserAuthByEmail looks the user up by normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, userNotFound(op)
	}
	return s.getUserAuth(ctx, op, `u.email_norm = $1`, norm)
}

func (s *PostgresStore) getUserAuth(ctx context.Context, op, where string, arg any) (UserAuth, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+`, c.password_hash
		   FROM `+s.table("users")+` u
		   JOIN `+s.table("user_credentials")+` c ON c.user_id = u.id
		  WHERE `+where,
		arg,
	)

	var (
		ua     UserAuth
		avatar *string
	)
	err := row.Scan(
		&ua.User.ID, &ua.User.Email, &ua.User.Username, &avatar, &ua.User.Active,
		&ua.User.CreatedAt, &ua.User.UpdatedAt, &ua.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, userNotFound(op)
		}
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	ua.User.Avatar = avatar
	return ua, nil
}

// EmailExists reports whether any account uses email (case-insensitive).
func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	const op = "identity.EmailExists"

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.table("users")+` WHERE email_norm = $1)`,
		NormalizeEmail(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// UsernameExists reports whether another account uses username (case-insensitive).
func (s *PostgresStore) UsernameExists(ctx context.Context, username, excludeID string) (bool, error) {
	const op = "identity.UsernameExists"

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM `+s.table("users")+`
		      WHERE username_norm = $1 AND id <> $2
		 )`,
		NormalizeUsername(username), strings.TrimSpace(excludeID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// UpdatePasswordHash replaces the stored hash for id and bumps the user's UpdatedAt.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if hash == "" {
		return invalid(op, "password hash is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// The user row is touched too so UpdatedAt reflects credential changes.
	tag, err := s.pool.Exec(ctx,
		`WITH cred AS (
		   UPDATE `+s.table("user_credentials")+`
		      SET password_hash = $2, updated_at = $3
		    WHERE user_id = $1
		   RETURNING user_id
		 )
		 UPDATE `+s.table("users")+` AS u
		    SET updated_at = $3
		   FROM cred
		  WHERE u.id = cred.user_id`,
		strings.TrimSpace(id), hash, now,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of in and returns the updated user.
// An empty Avatar clears it.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	const op = "identity.UpdateProfile"

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var username, usernameNorm *string
	if in.Username != nil {
		u := strings.TrimSpace(*in.Username)
		if u == "" {
			return User{}, invalid(op, "username is empty")
		}
		n := NormalizeUsername(u)
		username, usernameNorm = &u, &n
	}

	setAvatar := in.Avatar != nil
	var avatar *string
	if setAvatar {
		if a := strings.TrimSpace(*in.Avatar); a != "" {
			avatar = &a
		}
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.table("users")+` u
		    SET username      = COALESCE($2::text, u.username),
		        username_norm = COALESCE($3::text, u.username_norm),
		        avatar        = CASE WHEN $4::boolean THEN $5::text ELSE u.avatar END,
		        updated_at    = $6
		  WHERE u.id = $1
		RETURNING `+pgUserColumns,
		strings.TrimSpace(id), username, usernameNorm, setAvatar, avatar, now,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		avatar *string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &avatar, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Avatar = avatar
	return u, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "uq_users_username_norm", strings.Contains(c, "username"):
		return "username", true
	default:
		return "unique", true
	}
}
