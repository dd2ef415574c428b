package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(clk *fakeClock) *Service {
	return NewService(Config{
		Secret:     "test-secret-at-least-32-bytes-long",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clk)
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	svc := newTestService(clk)

	pair, err := svc.Issue("user-uuid-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.RefreshID)
	require.Equal(t, int64(900), pair.ExpiresIn)
	require.Equal(t, clk.now.Add(7*24*time.Hour), pair.RefreshExpiresAt)

	sub, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-uuid-1", sub)

	sub, jti, err := svc.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-uuid-1", sub)
	require.Equal(t, pair.RefreshID, jti)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	svc := newTestService(clk)

	pair, err := svc.Issue("user-uuid-1")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, _, err = svc.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiredAccessToken(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	svc := newTestService(clk)

	pair, err := svc.Issue("user-uuid-1")
	require.NoError(t, err)

	clk.now = clk.now.Add(16 * time.Minute)
	_, err = svc.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// Refresh outlives access.
	_, _, err = svc.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	clk.now = clk.now.Add(8 * 24 * time.Hour)
	_, _, err = svc.VerifyRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestWrongSecretRejected(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	svc := newTestService(clk)
	other := NewService(Config{
		Secret:     "a-completely-different-signing-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clk)

	pair, err := other.Issue("user-uuid-1")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMalformedTokenRejected(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	svc := newTestService(clk)

	for _, raw := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		_, err := svc.VerifyAccess(raw)
		require.ErrorIs(t, err, ErrTokenInvalid, "token %q", raw)
	}
}
