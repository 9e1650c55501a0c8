package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/httputil"
	"github.com/quickshelf/api/internal/logging"
	"github.com/quickshelf/api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

// UserContextKey holds the authenticated user record in the request context.
const UserContextKey ContextKey = "user"

// Middleware handles authentication for protected routes
type Middleware struct {
	tokens TokenService
	users  UserStore
	logger *logging.Logger
}

func NewMiddleware(tokens TokenService, users UserStore, logger *logging.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// RequireAuth resolves the bearer token to an authenticated identity and
// attaches the freshly loaded user record to the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		var token string

		// Priority 1: Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			} else {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}
		}

		// Priority 2: Cookie (fallback)
		if token == "" {
			cookieToken, err := GetAccessTokenFromCookie(r)
			if err != nil {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}
			token = cookieToken
		}

		claims, err := m.tokens.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrSigningKeyMissing) || errors.Is(err, config.ErrNotInitialized) {
				logger.Error("cannot verify tokens: signing key unavailable", "error", err.Error())
				httputil.RespondErrorWithCode(w, "server misconfigured", httputil.CodeServerMisconfigured, http.StatusInternalServerError)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		// The token is only a pointer to identity: load the authoritative
		// record so downstream decisions never rest on stale claims.
		current, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				// Token outlived the account. Outwardly identical to an
				// invalid token; the log keeps the distinction.
				logger.Warn("token subject no longer exists", "user_id", userID)
				httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
				return
			}
			logger.Error("failed to load token subject", "error", err.Error())
			httputil.RespondErrorWithCode(w, "internal error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, current)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route on the admin flag of the freshly loaded user
// record, never the flag embedded in the token. Revoking admin rights in the
// store therefore takes effect immediately, without waiting for token
// expiry. Must run after RequireAuth.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := UserFromContext(r.Context())
		if !ok {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		if !current.IsAdmin {
			httputil.RespondErrorWithCode(w, "forbidden", httputil.CodeForbidden, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok
}
