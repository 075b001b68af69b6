package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

const defaultUsersPerPage = 20

// UserHandler handles account, credential and user administration endpoints.
type UserHandler struct {
	service   *service.UserService
	cookie    CookieSettings
	publicURL string
	logger    *slog.Logger
}

// NewUserHandler creates a new user HTTP handler. publicURL is the externally
// visible origin used in password reset links; when empty the request host is
// used instead.
func NewUserHandler(svc *service.UserService, cookie CookieSettings, publicURL string, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service:   svc,
		cookie:    cookie,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// AuthResponse is returned by every endpoint that signs a user in.
type AuthResponse struct {
	User      domain.PublicUser `json:"user"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ForgotPasswordRequest is the JSON body of POST /password/forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *UserHandler) signedIn(w http.ResponseWriter, status int, res *service.AuthResult) {
	h.cookie.set(w, res.Session.Token)
	httputil.WriteData(w, status, AuthResponse{
		User:      res.User.Public(),
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
	})
}

// Register handles POST /api/v1/register. The body is JSON, or a multipart
// form with name, email, password and an optional avatar file.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if isMultipart(r) {
		upload, ok, err := readUpload(w, r, "avatar")
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		input.Name = r.FormValue("name")
		input.Email = r.FormValue("email")
		input.Password = r.FormValue("password")
		if ok {
			input.Avatar = upload
		}
	} else if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Register(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.signedIn(w, http.StatusCreated, res)
}

// Login handles POST /api/v1/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// Logout handles GET /api/v1/logout
func (h *UserHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookie.clear(w)
	httputil.WriteMessage(w, http.StatusOK, "logged out")
}

// ForgotPassword handles POST /api/v1/password/forgot
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, h.resetBaseURL(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "if the account exists, a reset link has been sent")
}

func (h *UserHandler) resetBaseURL(r *http.Request) string {
	origin := h.publicURL
	if origin == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		origin = scheme + "://" + r.Host
	}
	return origin + "/password/reset"
}

// ResetPassword handles PUT /api/v1/password/reset/{token}
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input service.ResetPasswordInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	input.Token = chi.URLParam(r, "token")

	res, err := h.service.ResetPassword(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context(), auth.UserFromContext(r.Context()).ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, u.Public())
}

// UpdatePassword handles PUT /api/v1/password/update
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var input service.UpdatePasswordInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.UpdatePassword(r.Context(), auth.UserFromContext(r.Context()).ID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.signedIn(w, http.StatusOK, res)
}

// UpdateProfile handles PUT /api/v1/me/update
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateProfileInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), auth.UserFromContext(r.Context()).ID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, u.Public())
}

// UploadAvatar handles PUT /api/v1/me/avatar with a multipart "avatar" field.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	upload, ok, err := readUpload(w, r, "avatar")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("avatar file is required"), h.logger)
		return
	}

	u, err := h.service.UploadAvatar(r.Context(), auth.UserFromContext(r.Context()).ID, upload)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, u.Public())
}

// --- Admin ---

// List handles GET /api/v1/admin/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListUsers(r.Context(), pagination.FromRequest(r, defaultUsersPerPage))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// Get handles GET /api/v1/admin/user/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, u.Public())
}

// Update handles PUT /api/v1/admin/user/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateUserInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	u, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, u.Public())
}

// Delete handles DELETE /api/v1/admin/user/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "user deleted")
}
