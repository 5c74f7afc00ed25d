package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "timetable"})
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService()
	token, expires, err := svc.IssueToken(TokenRequest{UserID: "u1", Email: "user@example.com", Role: models.RoleCoordinator})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	other := NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token, _, err := other.IssueToken(TokenRequest{UserID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = newTestAuthService().ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestValidateTokenRejectsExpiredAndTampered(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "timetable",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.Error(t, err)
}

func TestIssueTokenValidatesRole(t *testing.T) {
	_, _, err := newTestAuthService().IssueToken(TokenRequest{UserID: "u1", Role: "ROOT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
