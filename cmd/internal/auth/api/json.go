package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatbot/cmd/internal/auth/autherr"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type successResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, successResponse{
		Success:   true,
		Message:   msg,
		Data:      data,
		Timestamp: timestamp(),
	})
}

func writeError(w http.ResponseWriter, e *autherr.Error) {
	writeJSON(w, e.Status, errorResponse{
		Error:     e.Code,
		Message:   e.Message,
		Timestamp: timestamp(),
	})
}

// writeFailure classifies err and writes it. Unclassified errors are logged
// under event and returned to the client as a generic internal error.
func writeFailure(w http.ResponseWriter, log *slog.Logger, event string, err error) {
	e, ok := autherr.As(err)
	if !ok {
		log.Error(event, "err", err)
		e = autherr.ErrInternal
	}
	writeError(w, e)
}

// decodeJSON reads a single JSON object into dst. An empty body decodes as {}
// so that missing fields are reported by the handler, not as malformed JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
