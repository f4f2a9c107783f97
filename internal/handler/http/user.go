package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httputil"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/middleware"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

// DefaultSessionCookie is the cookie the session token is stored in.
const DefaultSessionCookie = "user-token"

// SessionCookie configures the session cookie. Secure cookies are sent with
// SameSite=None so a frontend on another origin can use them.
type SessionCookie struct {
	Name   string
	Secure bool
}

func (c SessionCookie) write(w http.ResponseWriter, token string, expires time.Time) {
	sameSite := http.SameSiteLaxMode
	if c.Secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	})
}

func (c SessionCookie) clear(w http.ResponseWriter) {
	c.write(w, "", time.Unix(0, 0))
}

// UserHandler handles HTTP requests for user and auth endpoints.
type UserHandler struct {
	service *service.UserService
	cookie  SessionCookie
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, cookie SessionCookie, logger *slog.Logger) *UserHandler {
	if cookie.Name == "" {
		cookie.Name = DefaultSessionCookie
	}
	return &UserHandler{service: svc, cookie: cookie, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// LoginRequest is the JSON request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest carries the ID token returned by Google sign-in.
type GoogleLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// EmailRequest is the body of endpoints that only need an address.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

// InvoiceRequest is the JSON request body for mailing an invoice.
type InvoiceRequest struct {
	Email string `json:"email" validate:"required,email"`
	HTML  string `json:"html" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Handlers ---

// Register handles POST /api/v1/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: user})
}

// Verify handles GET /api/v1/users/verify?token=
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Verify(r.Context(), r.URL.Query().Get("token")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "account verified"}})
}

// ResendVerification handles POST /api/v1/users/resend-verification
func (h *UserHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "verification email sent"}})
}

// Login handles POST /api/v1/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.startSession(w, session)
}

// LoginWithGoogle handles POST /api/v1/users/auth/google
func (h *UserHandler) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.LoginWithGoogle(r.Context(), req.Credential)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.startSession(w, session)
}

func (h *UserHandler) startSession(w http.ResponseWriter, session *domain.Session) {
	h.cookie.write(w, session.Token, session.ExpiresAt)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// Logout handles POST /api/v1/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookie.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword handles POST /api/v1/users/forgot-password. The response
// does not reveal whether the address is registered.
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: messageResponse{Message: "if the email is registered, a reset link was sent"},
	})
}

// ResetPassword handles POST /api/v1/users/reset-password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "password updated"}})
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	users, total, err := h.service.List(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(users, total, page)})
}

// SendInvoice handles POST /api/v1/users/send-invoice
func (h *UserHandler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SendInvoice(r.Context(), req.Email, req.HTML); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "invoice sent"}})
}
