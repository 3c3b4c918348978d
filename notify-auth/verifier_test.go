package notifyauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tj/assert"
)

var testSecret = []byte("local-dev-secret")

func mintToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(secret)
	assert.NoError(t, err)
	return raw
}

func TestHMACVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret}
		raw := mintToken(t, testSecret, jwt.MapClaims{
			"sub":   "u-42",
			"email": "u42@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		identity, err := verifier.Verify(ctx, raw)
		assert.NoError(t, err)
		assert.Equal(t, "u-42", identity.Sub)
		assert.Equal(t, "u42@example.com", identity.Email)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret}
		raw := mintToken(t, []byte("other-secret"), jwt.MapClaims{
			"sub": "u-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, raw)
		assert.Error(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret}
		raw := mintToken(t, testSecret, jwt.MapClaims{
			"sub": "u-42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, raw)
		assert.Error(t, err)
	})

	t.Run("token without expiry rejected", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret}
		raw := mintToken(t, testSecret, jwt.MapClaims{"sub": "u-42"})

		_, err := verifier.Verify(ctx, raw)
		assert.Error(t, err)
	})

	t.Run("token without subject rejected", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret}
		raw := mintToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, raw)
		assert.Error(t, err)
	})

	t.Run("audience enforced when configured", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret, Audience: "word-collect-web"}
		raw := mintToken(t, testSecret, jwt.MapClaims{
			"sub": "u-42",
			"aud": "another-app",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, raw)
		assert.Error(t, err)

		raw = mintToken(t, testSecret, jwt.MapClaims{
			"sub": "u-42",
			"aud": "word-collect-web",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		identity, err := verifier.Verify(ctx, raw)
		assert.NoError(t, err)
		assert.Equal(t, "u-42", identity.Sub)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		verifier := &HMACVerifier{Secret: testSecret}
		_, err := verifier.Verify(ctx, "not-a-jwt")
		assert.Error(t, err)
	})
}
