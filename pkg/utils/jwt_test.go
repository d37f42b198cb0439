package utils

import (
	"testing"
	"time"

	"github.com/IsaacEduardo/chat-umn/config"
	appErrors "github.com/IsaacEduardo/chat-umn/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{JWT: config.JWT{Secret: "test-secret", ExpiredIn: 3600}}
}

func Test_Token_RoundTrip(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	token, err := GenerateToken(userID, cfg)
	require.NoError(t, err)

	got, err := VerifyToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func Test_VerifyToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(uuid.New(), testConfig())
	require.NoError(t, err)

	other := config.Config{JWT: config.JWT{Secret: "different", ExpiredIn: 3600}}
	_, err = VerifyToken(token, other)
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)
}

func Test_VerifyToken_Expired(t *testing.T) {
	cfg := testConfig()
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	require.NoError(t, err)

	_, err = VerifyToken(token, cfg)
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)
}

func Test_VerifyToken_Garbage(t *testing.T) {
	_, err := VerifyToken("not-a-token", testConfig())
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)

	_, err = VerifyToken("", testConfig())
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)
}
