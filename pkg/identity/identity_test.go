package identity

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-secret")

func sign(t *testing.T, claims gojwt.MapClaims) string {
	t.Helper()
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)
	return s
}

func TestUserFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims gojwt.MapClaims
		want   string
		err    error
	}{
		{"user_id claim", gojwt.MapClaims{"user_id": "u-1", "sub": "other"}, "u-1", nil},
		{"subject fallback", gojwt.MapClaims{"sub": "u-2"}, "u-2", nil},
		{"numeric user_id", gojwt.MapClaims{"user_id": 42}, "42", nil},
		{"no user", gojwt.MapClaims{"scope": "read"}, "", ErrNoUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserFromToken(sign(t, tt.claims))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserFromTokenBearerPrefix(t *testing.T) {
	got, err := UserFromToken("Bearer " + sign(t, gojwt.MapClaims{"user_id": "u-1"}))
	require.NoError(t, err)
	assert.Equal(t, "u-1", got)
}

func TestParseUnverifiedMalformed(t *testing.T) {
	_, err := ParseUnverified("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseUnverifiedIgnoresSignature(t *testing.T) {
	token := sign(t, gojwt.MapClaims{"user_id": "u-1"})
	tampered := token[:len(token)-2] + "xx"

	claims, err := ParseUnverified(tampered)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestVerify(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := sign(t, gojwt.MapClaims{"user_id": "u-1", "client_id": "c-1", "exp": exp.Unix()})

	claims, err := Verify(token, testKey)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "c-1", claims.ClientID)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp))

	_, err = Verify(token, []byte("wrong"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	token := sign(t, gojwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err := Verify(token, testKey)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredWithoutExpiry(t *testing.T) {
	assert.False(t, (&Claims{}).Expired(time.Now()))
}
