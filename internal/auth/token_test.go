package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-bytes-long-1234567890"

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, "HS256", time.Hour)
	require.NoError(t, err)
	return m
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := newManager(t)
	token, err := m.Issue("alice")
	require.NoError(t, err)

	subject, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestTokenManager_DefaultTTL(t *testing.T) {
	m := newManager(t)
	assert.Equal(t, time.Hour, m.TTL())
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	token, err := m.Issue("alice")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, "alice", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_ZeroTTLIsExpired(t *testing.T) {
	m := newManager(t)
	token, err := m.IssueWithTTL("alice", 0)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_ElapsedExpiry(t *testing.T) {
	m := newManager(t)
	issuedAt := time.Now()
	m.now = func() time.Time { return issuedAt }
	token, err := m.IssueWithTTL("alice", time.Minute)
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuer := newManager(t)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	other, err := NewTokenManager("another-secret-32-bytes-long-0987654321", "HS256", time.Hour)
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsBadTokens(t *testing.T) {
	m := newManager(t)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	otherAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "alice", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	valid, err := m.Issue("alice")
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "obviously.invalid.token"},
		{"missing exp", noExp},
		{"missing sub", noSub},
		{"different algorithm", otherAlg},
		{"tampered signature", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewTokenManager_Errors(t *testing.T) {
	_, err := NewTokenManager(testSecret, "RS256", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenManager(testSecret, "nope", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenManager("", "HS256", time.Hour)
	assert.Error(t, err)
}
