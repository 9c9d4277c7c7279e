package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyVerifier_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer legacy-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"bob@example.com","role":"member","id":"owi-42"}`))
	}))
	defer server.Close()

	v := NewLegacyVerifier(server.URL)
	payload, err := v.Verify(context.Background(), "legacy-token")

	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", payload.Email)
	assert.Equal(t, "member", payload.Role)
	assert.Equal(t, "owi-42", payload.Subject)
}

func TestLegacyVerifier_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	v := NewLegacyVerifier(server.URL)
	_, err := v.Verify(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLegacyVerifier_MissingEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"role":"member"}`))
	}))
	defer server.Close()

	v := NewLegacyVerifier(server.URL)
	_, err := v.Verify(context.Background(), "token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
