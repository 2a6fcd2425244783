package jwt_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"meetspot-api/internal/jwt"
	"meetspot-api/internal/model"
)

func TestGenerateAndValidateTokens(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	user := &model.User{ID: uuid.New(), Email: "a@b.com"}

	access, refresh, err := jwt.GenerateTokens(user)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	require.NotEqual(t, access, refresh)

	claims, err := jwt.ValidateToken(access)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), claims["sub"])
	require.Equal(t, user.Email, claims["email"])

	refreshClaims, err := jwt.ValidateToken(refresh)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), refreshClaims["sub"])
}

func TestValidateToken_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "first-secret")

	user := &model.User{ID: uuid.New(), Email: "a@b.com"}
	access, _, err := jwt.GenerateTokens(user)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "second-secret")

	_, err = jwt.ValidateToken(access)
	require.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	_, err := jwt.ValidateToken("not.a.token")
	require.Error(t, err)
}
