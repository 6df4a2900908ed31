package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthLogin(t *testing.T) {
	hash, err := HashPassword("rahasia")
	require.NoError(t, err)
	signer := func(role string, ttl time.Duration) (string, error) {
		require.Equal(t, "admin", role)
		return "tok-123", nil
	}
	svc := NewAuthService(hash, signer)

	res, err := svc.Login("rahasia")
	require.NoError(t, err)
	require.Equal(t, "tok-123", res.Token)

	_, err = svc.Login("salah")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	require.Equal(t, ErrorUnauthorized, se.Code)

	_, err = svc.Login("  ")
	se, ok = AsServiceError(err)
	require.True(t, ok)
	require.Equal(t, ErrorInvalid, se.Code)
}

func TestAuthLoginUnconfigured(t *testing.T) {
	svc := NewAuthService(nil, nil)
	_, err := svc.Login("anything")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	require.Equal(t, ErrorUnauthorized, se.Code)
}
