package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// CookieName is the session cookie.
const CookieName = "token"

// UserFinder loads users by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Guard authenticates requests against live user records.
type Guard struct {
	sessions *SessionManager
	users    UserFinder
	logger   *slog.Logger
}

// NewGuard creates a guard.
func NewGuard(sessions *SessionManager, users UserFinder, logger *slog.Logger) *Guard {
	return &Guard{sessions: sessions, users: users, logger: logger}
}

// Resolve verifies token and loads the user it names. Any failure is an
// InvalidSession error; storage failures are returned as is.
func (g *Guard) Resolve(ctx context.Context, token string) (*middleware.Claims, error) {
	userID, err := g.sessions.Verify(token)
	if err != nil {
		msg := "invalid session, please login again"
		if errors.Is(err, ErrExpiredToken) {
			msg = "session expired, please login again"
		}
		return nil, apperrors.InvalidSession(msg)
	}

	user, err := g.users.FindByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.InvalidSession("invalid session, please login again")
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return &middleware.Claims{UserID: user.ID, Role: string(user.Role), Principal: user}, nil
}

// Authenticate is middleware requiring a valid session.
func (g *Guard) Authenticate() func(http.Handler) http.Handler {
	return middleware.Authenticate(CookieName, g.Resolve, g.logger)
}

// RequireRole is middleware admitting only users holding role. It must run
// after Authenticate.
func (g *Guard) RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				httputil.WriteError(w, r, apperrors.Unauthenticated("please login to access this resource"), g.logger)
				return
			}
			if !user.HasRole(role) {
				httputil.WriteError(w, r, apperrors.Forbidden(
					fmt.Sprintf("role %s is not allowed to access this resource", user.Role)), g.logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the user resolved by Authenticate, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}
	user, _ := claims.Principal.(*domain.User)
	return user
}
