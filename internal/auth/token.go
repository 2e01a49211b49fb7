package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the embedded-admin session token claims. Dest carries the
// tenant's admin origin (https://<shop>).
type Claims struct {
	jwt.RegisteredClaims
	Dest      string `json:"dest"`
	SessionID string `json:"sid,omitempty"`
}

// Tenant returns the tenant identifier derived from Dest.
func (c Claims) Tenant() string {
	return TenantFromDest(c.Dest)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

const clockSkew = 5 * time.Second

func IssueToken(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry and, when audience is non-empty, the
// aud claim. Any failure is reported as ErrInvalidToken or ErrExpiredToken.
func ParseToken(secret []byte, audience, token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Tenant() == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// TenantFromDest normalizes "https://Shop.example.com/" to "shop.example.com".
func TenantFromDest(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if parsed, err := url.Parse(dest); err == nil && parsed.Host != "" {
		return strings.ToLower(parsed.Host)
	}
	return strings.ToLower(strings.Trim(dest, "/"))
}

func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
