// Package identity extracts the current user from access tokens.
//
// The client never verifies tokens; it forwards them to the upstream and
// only needs the user id to tag cache entries. Verify exists for the
// development peer.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claim names read from tokens.
const (
	ClaimUserID   = "user_id"
	ClaimClientID = "client_id"
)

var (
	ErrNoUser       = errors.New("token carries no user")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the subset of token claims the client cares about.
type Claims struct {
	UserID   string
	ClientID string

	// ExpiresAt is zero when the token has no exp claim.
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseUnverified reads claims without checking the signature.
func ParseUnverified(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFrom(parsed.Claims.(gojwt.MapClaims))
}

// Verify checks an HMAC-signed token against key and returns its claims.
func Verify(token string, key []byte) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	parsed, err := gojwt.Parse(token, func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFrom(parsed.Claims.(gojwt.MapClaims))
}

// UserFromToken returns the user id of token: the user_id claim, else sub.
func UserFromToken(token string) (string, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", ErrNoUser
	}
	return claims.UserID, nil
}

func claimsFrom(mc gojwt.MapClaims) (*Claims, error) {
	c := &Claims{
		UserID:   stringClaim(mc, ClaimUserID),
		ClientID: stringClaim(mc, ClaimClientID),
	}
	if c.UserID == "" {
		if sub, err := mc.GetSubject(); err == nil {
			c.UserID = sub
		}
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// stringClaim accepts string and numeric ids.
func stringClaim(mc gojwt.MapClaims, name string) string {
	switch v := mc[name].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
