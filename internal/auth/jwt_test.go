package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := NewManager("test-secret")

	raw, err := m.Issue("user-1")
	require.NoError(t, err)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, TokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestVerify_ExpiresExactlyOneHourAfterIssue(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	raw, err := NewManager("test-secret").WithClock(fixedClock(issuedAt)).Issue("user-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{name: "at_issue", at: issuedAt, valid: true},
		{name: "one_second_before_expiry", at: issuedAt.Add(TokenTTL - time.Second), valid: true},
		{name: "at_expiry", at: issuedAt.Add(TokenTTL), valid: false},
		{name: "after_expiry", at: issuedAt.Add(TokenTTL + time.Second), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager("test-secret").WithClock(fixedClock(tt.at)).Verify(raw)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	raw, err := NewManager("secret-a").Issue("user-1")
	require.NoError(t, err)

	_, err = NewManager("secret-b").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := NewManager("test-secret").Verify(raw)
		assert.True(t, errors.Is(err, ErrInvalidToken), "token %q", raw)
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	now := time.Now()
	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewManager("test-secret").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsMissingIdentity(t *testing.T) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewManager("test-secret").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_EmptyUser(t *testing.T) {
	_, err := NewManager("test-secret").Issue("")
	assert.Error(t, err)
}
