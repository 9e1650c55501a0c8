package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quickshelf/api/internal/config"
)

// jwtClaims is the wire shape of the HS256 token: registered claims plus the
// admin flag. The flag is informational for clients; authorization re-reads
// the store (see Middleware.RequireAdmin).
type jwtClaims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm"`
}

// JWTService is the default TokenService: HS256-signed JWTs. The signing key
// is resolved from the config cache on every call, so a key rotated through
// the admin settings takes effect on the next sign or verify.
type JWTService struct {
	cache *config.Cache
}

func NewJWTService(cache *config.Cache) *JWTService {
	return &JWTService{cache: cache}
}

// CreateToken signs a token carrying the subject user id and the admin flag,
// expiring after TokenTTL.
func (s *JWTService) CreateToken(userID uuid.UUID, isAdmin bool) (string, error) {
	key, err := s.signingKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		Admin: isAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyToken validates signature and expiry. Every failure maps to
// ErrInvalidToken.
func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	key, err := s.signingKey()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	tc := &TokenClaims{
		UserID:    claims.Subject,
		IsAdmin:   claims.Admin,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		tc.IssuedAt = claims.IssuedAt.Time
	}

	return tc, nil
}

// signingKey resolves the key from the effective configuration: persisted
// settings win over the environment; neither means the service cannot issue
// or verify tokens at all.
func (s *JWTService) signingKey() ([]byte, error) {
	rt, err := s.cache.Current()
	if err != nil {
		return nil, err
	}

	if rt.SigningKey == "" {
		return nil, ErrSigningKeyMissing
	}

	return []byte(rt.SigningKey), nil
}
