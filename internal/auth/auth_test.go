package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPValidatorValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok-1", req.Token)
		assert.Equal(t, "s3cret", r.Header.Get("X-Admin-Secret"))

		_ = json.NewEncoder(w).Encode(validateResponse{
			Valid:    true,
			UserID:   "user-42",
			Username: "Ranja",
		})
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, "s3cret")
	identity, err := v.Validate(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.UserID)
	assert.Equal(t, "Ranja", identity.Username)
}

func TestHTTPValidatorRejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		valid   bool
		wantErr error
	}{
		{"invalid token response", http.StatusOK, false, ErrInvalidToken},
		{"unauthorized", http.StatusUnauthorized, false, ErrInvalidToken},
		{"forbidden", http.StatusForbidden, false, ErrInvalidToken},
		{"server error", http.StatusInternalServerError, false, ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, false, ErrUnavailable},
		{"weird status", http.StatusTeapot, false, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(validateResponse{Valid: tt.valid})
			}))
			defer srv.Close()

			_, err := NewHTTPValidator(srv.URL, "").Validate(context.Background(), "tok")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPValidatorEmptyToken(t *testing.T) {
	_, err := NewHTTPValidator("http://unused", "").Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorUnreachable(t *testing.T) {
	_, err := NewHTTPValidator("http://127.0.0.1:1", "").Validate(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoopValidator(t *testing.T) {
	identity, err := NewNoopValidator().Validate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, identity)
}
