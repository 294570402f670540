package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJWTRoundtrip(t *testing.T) {
	secret := []byte("test-secret")
	claims := NewTokenClaims("tenant-1", "user-1", "role-editor", "dep-1", time.Now().Add(time.Hour).Unix())

	token, err := GenerateJWT(claims, secret)
	assert.NoError(t, err)

	parsed, err := VerifyToken(token, secret)
	assert.NoError(t, err)
	assert.Equal(t, "tenant-1", parsed.TenantID)
	assert.Equal(t, "user-1", parsed.GetUser())
	assert.Equal(t, "role-editor", parsed.GetRole())
	assert.Equal(t, "dep-1", parsed.GetDepartment())
}

func TestJWTExpired(t *testing.T) {
	secret := []byte("test-secret")
	claims := NewTokenClaims("tenant-1", "user-1", "role-editor", "", time.Now().Add(-time.Hour).Unix())

	token, err := GenerateJWT(claims, secret)
	assert.NoError(t, err)

	_, err = VerifyToken(token, secret)
	assert.Error(t, err)
}

func TestJWTWrongSecret(t *testing.T) {
	claims := NewTokenClaims("tenant-1", "user-1", "role-editor", "", time.Now().Add(time.Hour).Unix())

	token, err := GenerateJWT(claims, []byte("secret-a"))
	assert.NoError(t, err)

	_, err = VerifyToken(token, []byte("secret-b"))
	assert.Error(t, err)
}
