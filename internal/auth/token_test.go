package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("a@x.com", SubjectReporter)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.SubjectID)
	assert.Equal(t, SubjectReporter, claims.Subject)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issued, _, err := NewTokenManager("secret-one", 60).GenerateToken("TICKET-1", SubjectTicket)
	require.NoError(t, err)

	_, err = NewTokenManager("secret-two", 60).ParseToken(issued)
	assert.Error(t, err)
}

func TestPasswordHashAndCompare(t *testing.T) {
	hashed, err := HashPassword("hunter2", 4)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hashed, "hunter2"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}
