package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/logging"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(newTestCache("test-signing-key"))
	userID := uuid.New()

	token, err := svc.CreateToken(userID, true)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.True(t, claims.IsAdmin)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt, time.Minute)
}

func TestJWTTokensAreUnique(t *testing.T) {
	svc := NewJWTService(newTestCache("test-signing-key"))
	userID := uuid.New()

	a, err := svc.CreateToken(userID, false)
	require.NoError(t, err)
	b, err := svc.CreateToken(userID, false)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	svc := NewJWTService(newTestCache("test-signing-key"))

	token, err := svc.CreateToken(uuid.New(), false)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = svc.VerifyToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(newTestCache("test-signing-key"))

	// Hand-craft an already expired token with the same key and claim shape.
	now := time.Now()
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	// Expired reads the same as forged.
	_, err = svc.VerifyToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsWrongKey(t *testing.T) {
	issuer := NewJWTService(newTestCache("key-one"))
	verifier := NewJWTService(newTestCache("key-two"))

	token, err := issuer.CreateToken(uuid.New(), false)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTSigningKeyMissing(t *testing.T) {
	svc := NewJWTService(newTestCache(""))

	_, err := svc.CreateToken(uuid.New(), false)
	assert.ErrorIs(t, err, ErrSigningKeyMissing)
}

func TestJWTCacheNotLoaded(t *testing.T) {
	base := &config.Config{}
	cache := config.NewCache(base, &fakeSettingsSource{}, logging.NewLogger(true))
	svc := NewJWTService(cache)

	_, err := svc.CreateToken(uuid.New(), false)
	assert.ErrorIs(t, err, config.ErrNotInitialized)
}

func TestJWTPersistedKeyWinsAndRotates(t *testing.T) {
	base := &config.Config{}
	base.Auth.SigningKey = "env-key"

	source := &fakeSettingsSource{settings: &config.Settings{TokenSigningKey: "persisted-key"}}
	cache := config.NewCache(base, source, logging.NewLogger(true))
	cache.Load(context.Background())

	svc := NewJWTService(cache)

	token, err := svc.CreateToken(uuid.New(), false)
	require.NoError(t, err)

	// Signed under the persisted key, not the environment one.
	envOnly := NewJWTService(newTestCache("env-key"))
	_, err = envOnly.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Rotating the persisted key invalidates prior tokens on reload.
	source.mu.Lock()
	source.settings.TokenSigningKey = "rotated-key"
	source.mu.Unlock()
	cache.Reload(context.Background())

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	fresh, err := svc.CreateToken(uuid.New(), false)
	require.NoError(t, err)
	_, err = svc.VerifyToken(fresh)
	assert.NoError(t, err)
}
