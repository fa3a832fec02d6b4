// Package auth issues and validates the bearer tokens operators use to
// call the roster and scan endpoints. Tokens are HS256 JWTs signed with
// a shared secret taken from VENUE_AUTH_SECRET.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "venueaccess"
	secretEnvVariable = "VENUE_AUTH_SECRET"
	operatorKeyEnvVar = "VENUE_OPERATOR_KEY"

	// issuedAtSkew is the clock skew tolerated when validating issued-at.
	issuedAtSkew = 5 * time.Second
)

var (
	errMissingSecret      = errors.New("auth secret is not configured")
	errMissingOperatorKey = errors.New("operator key is not configured")

	secretMu     sync.Mutex
	secretLoaded bool
	secretValue  []byte
	secretErr    error

	keyMu     sync.Mutex
	keyLoaded bool
	keyValue  []byte
	keyErr    error
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// ErrInvalidOperatorKey indicates the presented operator key does not
// match VENUE_OPERATOR_KEY.
var ErrInvalidOperatorKey = errors.New("invalid operator key")

// Claims represents JWT claims used across the service.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for the given operator and roles using HS256.
func GenerateToken(operatorID string, roles []string, ttl time.Duration) (string, error) {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return "", errors.New("operatorID is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	key, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		Roles: dedupeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims. All
// validation failures collapse into ErrInvalidToken so callers never leak
// the reason to the client.
func ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	key, err := loadSecret()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return key, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !claimsValid(claims) {
		return nil, ErrInvalidToken
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

func claimsValid(c *Claims) bool {
	if c.Issuer != issuer || strings.TrimSpace(c.Subject) == "" {
		return false
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return false
	}
	now := time.Now().UTC()
	switch {
	case now.After(c.ExpiresAt.Time):
		return false
	case c.NotBefore != nil && now.Before(c.NotBefore.Time):
		return false
	case c.IssuedAt.Time.After(now.Add(issuedAtSkew)):
		return false
	case c.ExpiresAt.Time.Before(c.IssuedAt.Time):
		return false
	}
	return true
}

// dedupeRoles lower-cases, trims and de-duplicates the role list, keeping
// first-seen order.
func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var out []string
	for _, r := range roles {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// VerifyOperatorKey compares the presented key against VENUE_OPERATOR_KEY.
// It returns ErrInvalidOperatorKey on mismatch and a configuration error
// when no key is set, so token issuance fails closed either way.
func VerifyOperatorKey(key string) error {
	configured, err := loadOperatorKey()
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), configured) != 1 {
		return ErrInvalidOperatorKey
	}
	return nil
}

func loadOperatorKey() ([]byte, error) {
	keyMu.Lock()
	defer keyMu.Unlock()
	if !keyLoaded {
		keyLoaded = true
		if raw := strings.TrimSpace(os.Getenv(operatorKeyEnvVar)); raw != "" {
			keyValue = []byte(raw)
		} else {
			keyErr = errMissingOperatorKey
		}
	}
	return keyValue, keyErr
}

// loadSecret reads VENUE_AUTH_SECRET once and caches the outcome, including
// the missing-secret error, so every token operation fails the same way on a
// misconfigured process.
func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if !secretLoaded {
		secretLoaded = true
		if raw := strings.TrimSpace(os.Getenv(secretEnvVariable)); raw != "" {
			secretValue = []byte(raw)
		} else {
			secretErr = errMissingSecret
		}
	}
	return secretValue, secretErr
}

// ResetSecretForTests clears the cached secret and operator key so tests
// can swap the environment between cases. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	secretLoaded = false
	secretValue = nil
	secretErr = nil
	secretMu.Unlock()

	keyMu.Lock()
	keyLoaded = false
	keyValue = nil
	keyErr = nil
	keyMu.Unlock()
}
