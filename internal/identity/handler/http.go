// Package handler exposes the PIN auth flows over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"geotrack/backend/internal/identity/service"
	"geotrack/backend/internal/platform/httpx"
	"geotrack/backend/internal/server/middleware"
	userdomain "geotrack/backend/internal/user/domain"
)

// AuthService is the subset of service.AuthService used by the HTTP handlers.
type AuthService interface {
	Login(ctx context.Context, identity, pin string) (*service.LoginResult, error)
	Register(ctx context.Context, email, pin string) (*userdomain.User, error)
	ChangePin(ctx context.Context, callerIdentity, email, oldPin, newPin string) error
	ResetPin(ctx context.Context, email string) (string, error)
}

// AuthHandler serves /auth/*.
type AuthHandler struct {
	svc  AuthService
	nowF func() time.Time
}

// NewAuthHandler returns an AuthHandler backed by svc.
func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc, nowF: time.Now}
}

type loginRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type registerRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

type registerResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type changePinRequest struct {
	Email  string `json:"email"`
	OldPIN string `json:"old_pin"`
	NewPIN string `json:"new_pin"`
}

type forgotPinRequest struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Login handles POST /auth/login: {email?, pin} -> token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	expiresIn := int64(res.ExpiresAt.Sub(h.nowF()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   expiresIn,
	})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, registerResponse{ID: u.ID, Email: u.Email})
}

// ChangePin handles POST /auth/change-pin. Requires an authenticated identity in context.
func (h *AuthHandler) ChangePin(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpx.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	var req changePinRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ChangePin(r.Context(), identity, req.Email, req.OldPIN, req.NewPIN); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "PIN changed successfully"})
}

// ForgotPin handles POST /auth/forgot-pin. The new PIN is delivered out of band, never in the response.
func (h *AuthHandler) ForgotPin(w http.ResponseWriter, r *http.Request) {
	var req forgotPinRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.svc.ResetPin(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "A new PIN has been sent to your email"})
}

func (h *AuthHandler) writeError(w http.ResponseWriter, err error) {
	var locked *service.LockedError
	switch {
	case errors.As(err, &locked):
		httpx.WriteError(w, http.StatusLocked, fmt.Sprintf("Account locked. Try again in %d minute(s).", locked.Minutes()))
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidPin),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDeliveryFailed):
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to send the new PIN")
	default:
		log.Printf("auth: internal error: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
