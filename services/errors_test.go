package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKindSentinels(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", conflictError("op", "User already registered", nil))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := providerError("store.Insert", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store.Insert: connection refused: connection refused", err.Error())
}

func TestWrapProviderKeepsClassifiedErrors(t *testing.T) {
	classified := credentialsError("op", "Invalid login credentials", nil)
	assert.Same(t, classified, wrapProvider("outer", classified))

	wrapped := wrapProvider("outer", errors.New("boom"))
	assert.Equal(t, KindProvider, KindOf(wrapped))
}

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Authorization: Bearer abc.def-ghi", "Authorization: Bearer [REDACTED]"},
		{"token eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig rejected", "token [REDACTED] rejected"},
		{"GET /rest?apikey=s3cr3t&x=1", "GET /rest?apikey=[REDACTED]&x=1"},
		{"nothing secret here", "nothing secret here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactSecrets(tt.in))
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "provider", KindProvider.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
