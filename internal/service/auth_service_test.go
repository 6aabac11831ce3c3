package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/config"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

const testJWTSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: testJWTSecret}, nil)
	require.True(t, svc.Enabled())

	token := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), models.JWTClaims{
		Email: studentEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Identity())
	assert.Equal(t, studentEmail, claims.Email)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: testJWTSecret}, nil)

	expired := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), models.JWTClaims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), models.JWTClaims{UserID: "user-1"})
	wrongAlg := signToken(t, jwt.SigningMethodHS512, []byte(testJWTSecret), models.JWTClaims{UserID: "user-1"})
	anonymous := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), models.JWTClaims{Email: studentEmail})

	for name, token := range map[string]string{
		"expired":   expired,
		"wrong key": wrongKey,
		"wrong alg": wrongAlg,
		"anonymous": anonymous,
		"garbage":   "not.a.token",
	} {
		_, err := svc.ValidateToken(token)
		assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), name)
	}
}

func TestValidateTokenWithoutSecret(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{}, nil)
	assert.False(t, svc.Enabled())
	_, err := svc.ValidateToken("anything")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
