package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chatbot/cmd/internal/auth/autherr"
	"chatbot/cmd/internal/auth/session"
)

// TokenVerifier checks a bearer token of the given kind.
type TokenVerifier interface {
	Verify(token string, kind session.Kind, now time.Time) (session.Claims, error)
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	ID       string
	Email    string
	Username string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached by RequireAuth or OptionalAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ID != ""
}

func principalOf(c session.Claims) Principal {
	return Principal{ID: c.UserID(), Email: c.Email, Username: c.Username}
}

// RequireAuth rejects requests without a valid access token.
func RequireAuth(v TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, autherr.ErrMissingToken)
				return
			}

			claims, err := v.Verify(token, session.KindAccess, time.Now().UTC())
			if err != nil {
				log.Info("auth.token.reject", "reason", err.Error(), "path", r.URL.Path)
				if errors.Is(err, session.ErrTokenExpired) {
					writeError(w, autherr.ErrTokenExpired)
					return
				}
				writeError(w, autherr.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principalOf(claims))))
		})
	}
}

// OptionalAuth attaches a principal when a valid access token is present and
// otherwise continues anonymously. It never rejects.
func OptionalAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if claims, err := v.Verify(token, session.KindAccess, time.Now().UTC()); err == nil {
					r = r.WithContext(WithPrincipal(r.Context(), principalOf(claims)))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
