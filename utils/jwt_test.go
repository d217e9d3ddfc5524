package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestTokenIssuer(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	t.Run("short secret rejected", func(t *testing.T) {
		_, err := NewTokenIssuer("short", "expense-api")
		assert.Error(t, err)
	})

	t.Run("round trip", func(t *testing.T) {
		issuer, err := NewTokenIssuer("0123456789abcdef", "expense-api")
		require.NoError(t, err)
		issuer.WithClock(fixedClock(start))

		token, expiresAt, err := issuer.Issue("user-1", "a@x.com", PurposeAccess, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, start.Add(time.Hour), expiresAt)

		claims, err := issuer.Parse(token, PurposeAccess)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "a@x.com", claims.Email)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("wrong purpose", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("0123456789abcdef", "expense-api")
		token, _, err := issuer.Issue("user-1", "a@x.com", PurposeConfirm, time.Hour)
		require.NoError(t, err)

		_, err = issuer.Parse(token, PurposeAccess)
		assert.ErrorContains(t, err, "purpose")
	})

	t.Run("expired", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("0123456789abcdef", "expense-api")
		issuer.WithClock(fixedClock(start))
		token, _, err := issuer.Issue("user-1", "a@x.com", PurposeAccess, time.Minute)
		require.NoError(t, err)

		issuer.WithClock(fixedClock(start.Add(2 * time.Minute)))
		_, err = issuer.Parse(token, PurposeAccess)
		assert.Error(t, err)
	})

	t.Run("other secret or issuer", func(t *testing.T) {
		a, _ := NewTokenIssuer("0123456789abcdef", "expense-api")
		b, _ := NewTokenIssuer("fedcba9876543210", "expense-api")
		c, _ := NewTokenIssuer("0123456789abcdef", "someone-else")

		token, _, err := a.Issue("user-1", "a@x.com", PurposeAccess, time.Hour)
		require.NoError(t, err)

		_, err = b.Parse(token, PurposeAccess)
		assert.Error(t, err)
		_, err = c.Parse(token, PurposeAccess)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("0123456789abcdef", "expense-api")
		_, err := issuer.Parse("not-a-token", PurposeAccess)
		assert.Error(t, err)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword("secret1", hash))
	assert.False(t, CheckPassword("secret2", hash))
	assert.False(t, CheckPasswordTiming("secret1", ""))
	assert.True(t, CheckPasswordTiming("secret1", hash))
}
