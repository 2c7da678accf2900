package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chatbot/cmd/internal/auth/autherr"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// resetLayout is ISO-8601 UTC with millisecond precision.
const resetLayout = "2006-01-02T15:04:05.000Z07:00"

// KeyFunc extracts the client key (usually the client IP) from a request.
type KeyFunc func(r *http.Request) string

// errorResponse is the API error envelope. RetryAfter is only set on 429.
type errorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
}

// Middleware admits or rejects each request through l.
func Middleware(l *Limiter, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)

			d, err := l.Allow(r.Context(), k)
			if err != nil {
				if errors.Is(err, ErrUnavailable) {
					writeError(w, autherr.ErrRateLimitUnavailable, l.now(), 0)
					return
				}
				log.Error("ratelimit.allow.fail", "err", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			h := w.Header()
			h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
			h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
			h.Set(HeaderReset, d.ResetAt.UTC().Format(resetLayout))

			if !d.Allowed {
				secs := int64(d.RetryAfter / time.Second)
				log.Warn("ratelimit.exceeded",
					"key", k,
					"path", r.URL.Path,
					"method", r.Method,
					"limit", d.Limit,
				)
				h.Set(HeaderRetryAfter, strconv.FormatInt(secs, 10))

				cfg := l.Config()
				e := autherr.ErrRateLimitExceeded.WithMessage(fmt.Sprintf(
					"Rate limit exceeded. Max %d requests per %d seconds",
					cfg.Max, int64(cfg.Window/time.Second)))
				writeError(w, e, l.now(), secs)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, e *autherr.Error, now time.Time, retryAfter int64) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:      e.Code,
		Message:    e.Message,
		Timestamp:  now.UTC().Format(resetLayout),
		RetryAfter: retryAfter,
	})
}
