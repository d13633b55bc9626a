package authtoken_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/authtoken"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("with key", func(t *testing.T) {
		t.Parallel()

		svc, err := authtoken.New([]byte("test-signing-key-32-bytes-long!!"))
		require.NoError(t, err)
		require.NotNil(t, svc)
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		svc, err := authtoken.New(nil)
		assert.ErrorIs(t, err, authtoken.ErrMissingSigningKey)
		assert.Nil(t, svc)
	})

	t.Run("empty string key", func(t *testing.T) {
		t.Parallel()

		svc, err := authtoken.NewFromString("")
		assert.ErrorIs(t, err, authtoken.ErrMissingSigningKey)
		assert.Nil(t, svc)
	})
}

func TestService_GenerateParse(t *testing.T) {
	t.Parallel()

	svc, err := authtoken.NewFromString("test-signing-key-32-bytes-long!!")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(authtoken.Claims{
			Subject:   "user-42",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		})
		require.NoError(t, err)
		require.Equal(t, 3, len(strings.Split(token, ".")))

		claims, err := svc.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "user-42", claims.Subject)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(authtoken.Claims{
			Subject:   "user-42",
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, authtoken.ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(authtoken.Claims{
			Subject:   "user-42",
			NotBefore: time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Parse("not-a-token")
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(authtoken.Claims{Subject: "user-42"})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"

		_, err = svc.Parse(strings.Join(parts, "."))
		assert.ErrorIs(t, err, authtoken.ErrInvalidSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		other, err := authtoken.NewFromString("another-signing-key-32-bytes!!!!")
		require.NoError(t, err)

		token, err := svc.Generate(authtoken.Claims{Subject: "user-42"})
		require.NoError(t, err)

		_, err = other.Parse(token)
		assert.ErrorIs(t, err, authtoken.ErrInvalidSignature)
	})
}
