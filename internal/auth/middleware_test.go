package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/api/internal/httputil"
	"github.com/quickshelf/api/internal/logging"
	"github.com/quickshelf/api/internal/user"
)

func newTestMiddleware(store *fakeUserStore) (*Middleware, TokenService) {
	tokens := NewJWTService(newTestCache("test-signing-key"))
	return NewMiddleware(tokens, store, logging.NewLogger(true)), tokens
}

func seedUser(t *testing.T, store *fakeUserStore, isAdmin bool) *user.User {
	t.Helper()

	created, err := store.Create(t.Context(), &user.User{
		Email:        uuid.NewString() + "@example.com",
		Username:     "u-" + uuid.NewString(),
		PasswordHash: "irrelevant",
		IsAdmin:      isAdmin,
	})
	require.NoError(t, err)
	return created
}

func echoUserHandler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := UserFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User-ID", current.ID.String())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAttachesUser(t *testing.T) {
	store := newFakeUserStore()
	mw, tokens := newTestMiddleware(store)
	u := seedUser(t, store, false)

	token, err := tokens.CreateToken(u.ID, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.RequireAuth(echoUserHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID.String(), rec.Header().Get("X-User-ID"))
}

func TestRequireAuthCookieFallback(t *testing.T) {
	store := newFakeUserStore()
	mw, tokens := newTestMiddleware(store)
	u := seedUser(t, store, false)

	token, err := tokens.CreateToken(u.ID, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec := httptest.NewRecorder()

	mw.RequireAuth(echoUserHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthMissingCredentials(t *testing.T) {
	store := newFakeUserStore()
	mw, _ := newTestMiddleware(store)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()

	mw.RequireAuth(echoUserHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.CodeMissingAuth)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	store := newFakeUserStore()
	mw, _ := newTestMiddleware(store)

	for _, header := range []string{"Bearer", "Basic abc123", "Bearer a b"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		mw.RequireAuth(echoUserHandler(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Contains(t, rec.Body.String(), httputil.CodeInvalidAuthHeader, "header %q", header)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	store := newFakeUserStore()
	mw, _ := newTestMiddleware(store)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()

	mw.RequireAuth(echoUserHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.CodeInvalidToken)
}

func TestRequireAuthUnknownSubjectMatchesInvalidToken(t *testing.T) {
	store := newFakeUserStore()
	mw, tokens := newTestMiddleware(store)

	// Valid token whose subject was never created (account deleted).
	orphan, err := tokens.CreateToken(uuid.New(), false)
	require.NoError(t, err)

	orphanReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	orphanReq.Header.Set("Authorization", "Bearer "+orphan)
	orphanRec := httptest.NewRecorder()
	mw.RequireAuth(echoUserHandler(t)).ServeHTTP(orphanRec, orphanReq)

	forgedReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	forgedReq.Header.Set("Authorization", "Bearer forged")
	forgedRec := httptest.NewRecorder()
	mw.RequireAuth(echoUserHandler(t)).ServeHTTP(forgedRec, forgedReq)

	// A probe must not be able to tell a deleted account from a bad token.
	assert.Equal(t, http.StatusUnauthorized, orphanRec.Code)
	assert.Equal(t, forgedRec.Code, orphanRec.Code)
	assert.Equal(t, forgedRec.Body.String(), orphanRec.Body.String())
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	store := newFakeUserStore()
	mw, tokens := newTestMiddleware(store)
	admin := seedUser(t, store, true)

	token, err := tokens.CreateToken(admin.ID, true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.RequireAuth(mw.RequireAdmin(echoUserHandler(t))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminDeniesNonAdmin(t *testing.T) {
	store := newFakeUserStore()
	mw, tokens := newTestMiddleware(store)
	u := seedUser(t, store, false)

	token, err := tokens.CreateToken(u.ID, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.RequireAuth(mw.RequireAdmin(echoUserHandler(t))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.CodeForbidden)
}

func TestRequireAdminChecksStoreNotToken(t *testing.T) {
	store := newFakeUserStore()
	mw, tokens := newTestMiddleware(store)
	admin := seedUser(t, store, true)

	// Token minted while the user was still an admin.
	token, err := tokens.CreateToken(admin.ID, true)
	require.NoError(t, err)

	// Rights revoked in the store; the old token is still within its TTL.
	store.patch(admin.ID, func(u *user.User) { u.IsAdmin = false })

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.RequireAuth(mw.RequireAdmin(echoUserHandler(t))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminWithoutAuthContext(t *testing.T) {
	store := newFakeUserStore()
	mw, _ := newTestMiddleware(store)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	rec := httptest.NewRecorder()

	// RequireAdmin wired without RequireAuth ahead of it.
	mw.RequireAdmin(echoUserHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
