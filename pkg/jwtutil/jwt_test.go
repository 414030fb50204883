package jwtutil

import (
	"testing"

	"linktex-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	token, err := GenerateToken("ana@example.com", 7, 10, "Textiles Ruiz", "operario")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(10), claims.CompanyID)
	assert.Equal(t, "Textiles Ruiz", claims.CompanyName)
	assert.Equal(t, "operario", claims.Role)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationHours: 1})
	token, err := GenerateToken("ana@example.com", 7, 10, "", "admin")
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: -1})
	token, err := GenerateToken("ana@example.com", 7, 10, "", "admin")
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestUninitializedConfig(t *testing.T) {
	Initialize(nil)
	defer Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	_, err := GenerateToken("ana@example.com", 7, 10, "", "admin")
	assert.Error(t, err)

	_, err = ValidateToken("anything")
	assert.Error(t, err)
}
