// Package authapi exposes the identity service over HTTP.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"

	"chatbot/cmd/internal/auth/account"
	"chatbot/cmd/internal/auth/autherr"

	"github.com/go-chi/chi/v5"
)

// Handler wires HTTP auth and user endpoints to the identity service.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts *account.Service
	tokens   TokenVerifier
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, accounts *account.Service, tokens TokenVerifier, cfg Config) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if accounts == nil {
		return nil, errors.New("auth: nil account service")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token verifier")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, accounts: accounts, tokens: tokens}, nil
}

// Routes returns the auth and user routes, relative to the API root.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.With(OptionalAuth(h.tokens)).Post("/logout", h.handleLogout)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(RequireAuth(h.tokens, h.log))
		r.Get("/profile", h.handleGetProfile)
		r.Put("/profile", h.handleUpdateProfile)
		r.Put("/password", h.handleChangePassword)
	})

	return r
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, autherr.ErrInvalidJSON)
		return
	}

	res, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeFailure(w, h.log, "auth.register.fail", err)
		return
	}

	writeData(w, http.StatusCreated, "User registered successfully", toAuthResponse(res))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, autherr.ErrInvalidJSON)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeFailure(w, h.log, "auth.login.error", err)
		return
	}

	writeData(w, http.StatusOK, "Login successful", toAuthResponse(res))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, autherr.ErrInvalidJSON)
		return
	}

	res, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeFailure(w, h.log, "auth.refresh.error", err)
		return
	}

	writeData(w, http.StatusOK, "Token refreshed successfully", toAuthResponse(res))
}

// handleLogout always succeeds. Tokens are stateless, so the client discards them.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if p, ok := PrincipalFrom(r.Context()); ok {
		h.log.Info("auth.logout", "user_id", p.ID)
	}
	writeData(w, http.StatusOK, "Logout successful", nil)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, autherr.ErrMissingToken)
		return
	}

	u, err := h.accounts.Profile(r.Context(), p.ID)
	if err != nil {
		writeFailure(w, h.log, "users.profile.error", err)
		return
	}

	writeData(w, http.StatusOK, "", profileResponse{User: toUserResponse(u)})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, autherr.ErrMissingToken)
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, autherr.ErrInvalidJSON)
		return
	}

	u, err := h.accounts.UpdateProfile(r.Context(), p.ID, account.ProfileUpdate{
		Username: req.Username,
		Avatar:   req.Avatar,
	})
	if err != nil {
		writeFailure(w, h.log, "users.profile.update.error", err)
		return
	}

	writeData(w, http.StatusOK, "Profile updated successfully", profileResponse{User: toUserResponse(u)})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, autherr.ErrMissingToken)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, autherr.ErrInvalidJSON)
		return
	}

	err := h.accounts.ChangePassword(r.Context(), p.ID, account.ChangePasswordInput{
		Current: req.CurrentPassword,
		New:     req.NewPassword,
		Confirm: req.ConfirmPassword,
	})
	if err != nil {
		writeFailure(w, h.log, "users.password.error", err)
		return
	}

	writeData(w, http.StatusOK, "Password changed successfully", nil)
}
