package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	p := Principal{UserID: 42, Username: "chief.eng", UserRights: RightsAdmin}

	tokens, rc, err := m.Issue(p)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)
	assert.NotEmpty(t, rc.JTI)

	got, err := m.ParseAccess(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.True(t, got.IsAdmin())

	refresh, err := m.ParseRefresh(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), refresh.UserID)
	assert.Equal(t, rc.JTI, refresh.JTI)
}

func TestParseRejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour, time.Hour)
	tokens, _, err := m.Issue(Principal{UserID: 7, Username: "u", UserRights: RightsVesselUser})
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWTManager("other", time.Hour, time.Hour)
		_, err := other.ParseAccess(tokens.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		short := NewJWTManager("test-secret", -time.Minute, time.Hour)
		expired, _, err := short.Issue(Principal{UserID: 7})
		require.NoError(t, err)
		_, err = m.ParseAccess(expired.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ParseAccess("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token types are not interchangeable", func(t *testing.T) {
		_, err := m.ParseAccess(tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = m.ParseRefresh(tokens.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
