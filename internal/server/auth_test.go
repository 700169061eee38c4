package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
)

func TestIssueAndAuthenticate(t *testing.T) {
	token, err := IssueToken("s", "u-1", domain.RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)
	p, err := authenticateJWT(token, "s")
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u-1", Role: domain.RoleAdmin, Source: "jwt"}, p)
	assert.True(t, p.caller().IsAdmin())
}

func TestAuthenticateRejects(t *testing.T) {
	now := time.Now()
	good, err := IssueToken("s", "u-1", domain.RoleUser, time.Hour, now)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{Role: "admin"}).SignedString([]byte("s"))
	require.NoError(t, err)

	cases := map[string]struct {
		token, secret string
	}{
		"wrong secret": {good, "other"},
		"no secret":    {good, ""},
		"alg none":     {unsigned, "s"},
		"missing sub":  {noSubject, "s"},
		"garbage":      {"not-a-jwt", "s"},
	}
	for name, tc := range cases {
		if _, err := authenticateJWT(tc.token, tc.secret); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUnknownRoleFallsBackToUser(t *testing.T) {
	token, err := IssueToken("s", "u-1", domain.Role("superuser"), 0, time.Now())
	require.NoError(t, err)
	p, err := authenticateJWT(token, "s")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, p.Role)
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("bearer")
	assert.False(t, ok)
}

func TestUserLimiter(t *testing.T) {
	l := newUserLimiter(2, time.Hour)
	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	disabled := newUserLimiter(0, time.Hour)
	assert.Nil(t, disabled)
	assert.True(t, disabled.allow("a"))
}
