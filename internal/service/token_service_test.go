package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "mind"})

	token, err := svc.Issue("fac-1", models.RoleFaculty, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{Identity: "fac-1", Role: models.RoleFaculty}, claims.Principal())
	assert.NotEmpty(t, claims.ID)
}

func TestTokenServiceRejectsTampering(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "other", Issuer: "mind"})
	token, err := issuer.Issue("stu-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret", Issuer: "mind"}).ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRejectsExpiredAndForeignIssuer(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "mind"})
	svc.now = func() time.Time { return testNow }
	token, err := svc.Issue("stu-1", models.RoleStudent, time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(2 * time.Minute) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	foreign := NewTokenService(TokenConfig{Secret: "secret", Issuer: "elsewhere"})
	token, err = foreign.Issue("stu-1", models.RoleStudent, time.Hour)
	require.NoError(t, err)
	_, err = NewTokenService(TokenConfig{Secret: "secret", Issuer: "mind"}).ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRequiresIdentity(t *testing.T) {
	claims := &models.JWTClaims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret"}).ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRejectsNoneAlgorithm(t *testing.T) {
	claims := &models.JWTClaims{UserID: "root", Role: models.RoleAdmin}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret"}).ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
