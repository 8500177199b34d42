package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ScopeOverrides grants access to the export, import and options endpoints.
const ScopeOverrides = "entity_overrides"

// defaultTokenTTL applies when a caller passes a non-positive TTL.
const defaultTokenTTL = 60 * time.Minute

var (
	// ErrTokenInvalid is returned for tokens that fail signature, expiry or
	// claim checks.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrNoSecret is returned when signing without a configured secret.
	ErrNoSecret = errors.New("auth: no signing secret configured")
)

// Claims are the JWT claims of an API token.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// GenerateToken creates a signed token for subject, valid for ttl.
//
// Parameters:
//   - subject: who the token is for (user name, script name)
//   - secret: the api.auth.jwt_secret value
//   - ttl: lifetime; <= 0 uses one hour
//
// Returns:
//   - string: the compact JWT
//   - error: ErrNoSecret, or a signing failure
func GenerateToken(subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: ScopeOverrides,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns its claims. Only HS256 is
// accepted, the token must be unexpired, and it must carry a subject and the
// overrides scope.
func ParseToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Scope != ScopeOverrides {
		return nil, fmt.Errorf("%w: scope %q not allowed", ErrTokenInvalid, claims.Scope)
	}
	return claims, nil
}
