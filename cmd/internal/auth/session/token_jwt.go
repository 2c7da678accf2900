package session

import (
	"errors"
	"strings"
	"time"

	"chatbot/cmd/identity/ids"

	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Subject is the identity envelope minted into every token.
type Subject struct {
	ID       string
	Email    string
	Username string
}

// Claims is the decoded payload of a verified token.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Kind     Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject id.
func (c Claims) UserID() string { return c.Subject }

// Pair is a freshly minted access/refresh pair.
type Pair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time

	// ExpiresIn is the access lifetime in seconds.
	ExpiresIn int64
}

// Codec issues and verifies HS256 tokens.
type Codec struct {
	secret []byte
	issuer string

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec builds a Codec from cfg.
func NewCodec(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Codec{
		secret:     []byte(cfg.Secret),
		issuer:     strings.TrimSpace(cfg.Issuer),
		accessTTL:  ParseLifetime(cfg.AccessTTL),
		refreshTTL: ParseLifetime(cfg.RefreshTTL),
	}, nil
}

// Issue signs a token of the given kind for sub.
func (c *Codec) Issue(sub Subject, kind Kind, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(sub.ID) == "" {
		return "", time.Time{}, errors.New("session: empty subject")
	}

	ttl := c.accessTTL
	switch kind {
	case KindAccess:
	case KindRefresh:
		ttl = c.refreshTTL
	default:
		return "", time.Time{}, errors.New("session: unknown token kind")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(ttl)

	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := Claims{
		Email:    sub.Email,
		Username: sub.Username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssuePair mints one access and one refresh token at the same instant.
func (c *Codec) IssuePair(sub Subject, now time.Time) (Pair, error) {
	access, accessExp, err := c.Issue(sub, KindAccess, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := c.Issue(sub, KindRefresh, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
		ExpiresIn:    int64(c.accessTTL / time.Second),
	}, nil
}

// Verify checks signature, expiry and kind, and returns the decoded claims.
//
// The signature is checked before any claim, so a token signed with another
// secret is ErrTokenInvalid even when it has also expired.
func (c *Codec) Verify(token string, kind Kind, now time.Time) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrTokenMalformed
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		default:
			return Claims{}, ErrTokenInvalid
		}
	}

	if claims.Kind != kind || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
