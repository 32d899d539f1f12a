package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	v := NewVerifier("s3cret")

	tok, err := v.Issue("owner-1", "owner@example.com", time.Hour)
	require.NoError(t, err)

	p, err := v.FromHeader("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", p.OwnerID)
	assert.Equal(t, "owner@example.com", p.Email)
}

func TestParse_Rejects(t *testing.T) {
	v := NewVerifier("s3cret")

	expired, err := v.Issue("owner-1", "", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewVerifier("different").Issue("owner-1", "", time.Hour)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "owner-1",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "owner-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":    expired,
		"other key":  otherKey,
		"no subject": noSubject,
		"no expiry":  noExpiry,
		"hs512":      hs512,
		"garbage":    "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Parse(tok)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestFromHeader_Malformed(t *testing.T) {
	v := NewVerifier("s3cret")

	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer "} {
		_, err := v.FromHeader(h)
		require.ErrorIs(t, err, ErrUnauthorized, h)
	}
}

func TestParse_NoSecret(t *testing.T) {
	_, err := NewVerifier("").Parse("anything")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{OwnerID: "owner-1"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "owner-1", p.OwnerID)
}
