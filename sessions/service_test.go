package sessions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	serviceErrors "github.com/jrsteele09/go-session-service/internal/errors"
	"github.com/jrsteele09/go-session-service/refresh"
	refreshrepofake "github.com/jrsteele09/go-session-service/refresh/repofake"
	"github.com/jrsteele09/go-session-service/sessions"
	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/token/denylist"
	tokenjwt "github.com/jrsteele09/go-session-service/token/jwt"
)

const (
	secretStr     = "1234"
	issuer        = "com.testissuer"
	audience      = "api"
	testUserID    = "user-1"
	testUserAgent = "Mozilla/5.0 (X11; Linux x86_64)"
	testIPAddress = "203.0.113.7"
)

// testFixture holds the engine and its in-memory dependencies, with a
// controllable clock
type testFixture struct {
	repo     *refreshrepofake.FakeRefreshRepo
	denylist *denylist.InMemoryDenylist
	service  *sessions.Service
	now      time.Time
}

// setupTestFixture creates the engine wired to the fake record store
func setupTestFixture(t *testing.T, options ...sessions.ServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		repo:     refreshrepofake.NewFakeRefreshRepo(),
		denylist: denylist.NewInMemoryDenylist(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	creator, err := tokenjwt.NewCreator(tokenjwt.NewHMACSigner(secretStr), issuer, audience)
	require.NoError(t, err)

	opts := append([]sessions.ServiceOption{
		sessions.WithNowFunc(func() time.Time { return f.now }),
		sessions.WithDenylist(f.denylist),
	}, options...)

	service, err := sessions.NewService(f.repo, creator, opts...)
	require.NoError(t, err)
	f.service = service

	return f
}

// advance moves the fixture clock forward
func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// issueSession issues a session with default device metadata
func (f *testFixture) issueSession(t *testing.T, userID string) *token.Pair {
	t.Helper()

	pair, err := f.service.Issue(context.Background(), userID, sessions.Metadata{
		UserAgent: testUserAgent,
		IPAddress: testIPAddress,
	})
	require.NoError(t, err)
	return pair
}

// recordForToken looks up the stored record behind a plaintext token,
// including dead rows
func (f *testFixture) recordForToken(t *testing.T, plaintext string) *refresh.Record {
	t.Helper()

	record, err := f.repo.GetByHash(context.Background(), token.Hash(plaintext), true)
	require.NoError(t, err)
	require.NotNil(t, record)
	return record
}

// TestIssue_ReturnsPairAndStoresDigestOnly tests that issuance returns both
// token halves and persists only the refresh digest
func TestIssue_ReturnsPairAndStoresDigestOnly(t *testing.T) {
	f := setupTestFixture(t)

	pair := f.issueSession(t, testUserID)

	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, f.now.Add(14*24*time.Hour), pair.ExpiresAt)

	record := f.recordForToken(t, pair.RefreshToken)
	require.Equal(t, token.Hash(pair.RefreshToken), record.TokenHash)
	require.NotEqual(t, pair.RefreshToken, record.TokenHash, "plaintext must never be stored")
	require.Equal(t, testUserID, record.UserID)
	require.NotNil(t, record.UserAgent)
	require.Equal(t, testUserAgent, *record.UserAgent)
	require.True(t, record.Live())
}

// TestIssue_RequiresUserID tests issuance input validation
func TestIssue_RequiresUserID(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Issue(context.Background(), "", sessions.Metadata{})

	require.Error(t, err)
	require.Contains(t, err.Error(), "userID")
}

// TestRotate_IssuesNewPairAndRetiresOld tests a single successful rotation
func TestRotate_IssuesNewPairAndRetiresOld(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)

	next, err := f.service.Rotate(context.Background(), pair.RefreshToken)

	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken, "refresh token should rotate")

	old := f.recordForToken(t, pair.RefreshToken)
	require.True(t, old.Revoked)
	require.NotNil(t, old.RevokedReason)
	require.Equal(t, refresh.ReasonRotated, *old.RevokedReason)
	require.NotNil(t, old.DeletedAt, "rotated record should be soft-deleted")

	successor := f.recordForToken(t, next.RefreshToken)
	require.True(t, successor.Live())
	require.Equal(t, testUserID, successor.UserID)
	require.NotNil(t, successor.UserAgent)
	require.Equal(t, testUserAgent, *successor.UserAgent, "successor keeps device metadata")
}

// TestRotate_SecondUseDetectsReuse tests one-time use: replaying a rotated
// token fails with the reuse error and kills the successor too
func TestRotate_SecondUseDetectsReuse(t *testing.T) {
	f := setupTestFixture(t)
	pairA := f.issueSession(t, testUserID)

	pairB, err := f.service.Rotate(context.Background(), pairA.RefreshToken)
	require.NoError(t, err)

	_, err = f.service.Rotate(context.Background(), pairA.RefreshToken)
	require.ErrorIs(t, err, serviceErrors.ErrTokenReuseDetected)

	// B was never directly reused but falls with the cascade.
	_, err = f.service.Rotate(context.Background(), pairB.RefreshToken)
	require.Error(t, err)
	require.True(t,
		serviceErrors.Is(err, serviceErrors.ErrTokenReuseDetected) ||
			serviceErrors.Is(err, serviceErrors.ErrInvalidRefreshToken))
}

// TestRotate_CascadeRevokesSecondDevice tests that a reuse on one device
// revokes sessions issued independently on other devices
func TestRotate_CascadeRevokesSecondDevice(t *testing.T) {
	f := setupTestFixture(t)
	deviceA := f.issueSession(t, testUserID)
	deviceB := f.issueSession(t, testUserID)

	_, err := f.service.Rotate(context.Background(), deviceA.RefreshToken)
	require.NoError(t, err)

	_, err = f.service.Rotate(context.Background(), deviceA.RefreshToken)
	require.ErrorIs(t, err, serviceErrors.ErrTokenReuseDetected)

	recordB := f.recordForToken(t, deviceB.RefreshToken)
	require.True(t, recordB.Revoked)
	require.NotNil(t, recordB.RevokedReason)
	require.Equal(t, refresh.ReasonSuspiciousActivity, *recordB.RevokedReason)

	summaries, err := f.service.ListSessions(context.Background(), testUserID)
	require.NoError(t, err)
	require.Empty(t, summaries, "no session should survive a detected reuse")
}

// TestRotate_ReuseBlocksAccessTokens tests that the denylist watermark is
// raised when the cascade fires
func TestRotate_ReuseBlocksAccessTokens(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)
	issuedAt := f.now

	_, err := f.service.Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	_, err = f.service.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, serviceErrors.ErrTokenReuseDetected)

	blocked, err := f.denylist.IsBlocked(context.Background(), testUserID, issuedAt)
	require.NoError(t, err)
	require.True(t, blocked, "access tokens issued before the cascade should be rejected")
}

// TestRotate_UnknownToken tests that an unrecognized token fails without a
// cascade
func TestRotate_UnknownToken(t *testing.T) {
	f := setupTestFixture(t)
	survivor := f.issueSession(t, testUserID)

	_, err := f.service.Rotate(context.Background(), "never-issued-token")
	require.ErrorIs(t, err, serviceErrors.ErrInvalidRefreshToken)

	record := f.recordForToken(t, survivor.RefreshToken)
	require.True(t, record.Live(), "unknown tokens must not trigger revocation")
}

// TestRotate_Expired tests absolute expiry: past the refresh lifetime the
// token is rejected and the record ends revoked with reason expired
func TestRotate_Expired(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)

	f.advance(15 * 24 * time.Hour)

	_, err := f.service.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, serviceErrors.ErrInvalidRefreshToken)

	record := f.recordForToken(t, pair.RefreshToken)
	require.True(t, record.Revoked)
	require.NotNil(t, record.RevokedReason)
	require.Equal(t, refresh.ReasonExpired, *record.RevokedReason)
	require.NotNil(t, record.DeletedAt)
}

// TestRotate_IdleTimeout tests the idle window: an unused token dies before
// its absolute expiry, with a reason distinct from expired and from reuse
func TestRotate_IdleTimeout(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)

	f.advance(8 * 24 * time.Hour) // past the 7 day idle window, inside the 14 day lifetime

	_, err := f.service.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, serviceErrors.ErrInvalidRefreshToken)

	record := f.recordForToken(t, pair.RefreshToken)
	require.True(t, record.Revoked)
	require.NotNil(t, record.RevokedReason)
	require.Equal(t, refresh.ReasonIdleTimeout, *record.RevokedReason)
}

// TestRotate_KeepsSessionFreshWithinIdleWindow tests that regular rotation
// resets the idle clock via the successor's last_used_at
func TestRotate_KeepsSessionFreshWithinIdleWindow(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)

	for i := 0; i < 2; i++ {
		f.advance(5 * 24 * time.Hour)
		next, err := f.service.Rotate(context.Background(), pair.RefreshToken)
		require.NoError(t, err, "rotation %d should succeed inside the idle window", i+1)
		pair = next
	}
}

// TestRevoke_Idempotent tests logout semantics: revoking a live token works
// and revoking a dead or unknown one is a silent success
func TestRevoke_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)

	err := f.service.Revoke(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	record := f.recordForToken(t, pair.RefreshToken)
	require.True(t, record.Revoked)
	require.NotNil(t, record.RevokedReason)
	require.Equal(t, refresh.ReasonLogout, *record.RevokedReason)
	require.NotNil(t, record.DeletedAt)

	// Second logout with the same token, and logout of a token that never
	// existed, both succeed silently.
	require.NoError(t, f.service.Revoke(context.Background(), pair.RefreshToken))
	require.NoError(t, f.service.Revoke(context.Background(), "never-issued-token"))
}

// TestRevoke_DoesNotCascade tests that logout of a dead token is not
// mistaken for theft
func TestRevoke_DoesNotCascade(t *testing.T) {
	f := setupTestFixture(t)
	loggedOut := f.issueSession(t, testUserID)
	survivor := f.issueSession(t, testUserID)

	require.NoError(t, f.service.Revoke(context.Background(), loggedOut.RefreshToken))
	require.NoError(t, f.service.Revoke(context.Background(), loggedOut.RefreshToken))

	record := f.recordForToken(t, survivor.RefreshToken)
	require.True(t, record.Live())
}

// TestRevokeAll_RevokesEveryLiveSession tests bulk revocation with a count
func TestRevokeAll_RevokesEveryLiveSession(t *testing.T) {
	f := setupTestFixture(t)
	f.issueSession(t, testUserID)
	f.issueSession(t, testUserID)
	f.issueSession(t, testUserID)
	other := f.issueSession(t, "user-2")

	count, err := f.service.RevokeAll(context.Background(), testUserID, refresh.ReasonLogoutAll)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	summaries, err := f.service.ListSessions(context.Background(), testUserID)
	require.NoError(t, err)
	require.Empty(t, summaries)

	// Other users are untouched.
	record := f.recordForToken(t, other.RefreshToken)
	require.True(t, record.Live())
}

// TestRevokeAll_RejectsUnknownReason tests reason validation
func TestRevokeAll_RejectsUnknownReason(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.RevokeAll(context.Background(), testUserID, refresh.Reason("because"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid reason")
}

// TestListSessions_OrderedByRecency tests the device-view listing
func TestListSessions_OrderedByRecency(t *testing.T) {
	f := setupTestFixture(t)
	older := f.issueSession(t, testUserID)
	f.advance(time.Hour)
	newer := f.issueSession(t, testUserID)

	summaries, err := f.service.ListSessions(context.Background(), testUserID)

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, f.recordForToken(t, newer.RefreshToken).ID, summaries[0].ID)
	require.Equal(t, f.recordForToken(t, older.RefreshToken).ID, summaries[1].ID)
	require.Equal(t, testUserAgent, summaries[0].UserAgent)
	require.Equal(t, testIPAddress, summaries[0].IPAddress)
}

// TestRevokeSession_ByID tests single-device logout from the session list
func TestRevokeSession_ByID(t *testing.T) {
	f := setupTestFixture(t)
	target := f.issueSession(t, testUserID)
	survivor := f.issueSession(t, testUserID)

	sessionID := f.recordForToken(t, target.RefreshToken).ID

	ok, err := f.service.RevokeSession(context.Background(), sessionID, testUserID)
	require.NoError(t, err)
	require.True(t, ok)

	// Already dead: reported as not revoked, not an error.
	ok, err = f.service.RevokeSession(context.Background(), sessionID, testUserID)
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, f.recordForToken(t, survivor.RefreshToken).Live())
}

// TestRevokeSession_WrongUser tests that ownership is enforced
func TestRevokeSession_WrongUser(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)
	sessionID := f.recordForToken(t, pair.RefreshToken).ID

	ok, err := f.service.RevokeSession(context.Background(), sessionID, "user-2")

	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, f.recordForToken(t, pair.RefreshToken).Live())
}

// TestRotate_ConcurrentSingleWinner tests the rotation race: many
// simultaneous rotations of one live token produce exactly one winner, and
// every loser observes the reuse error
func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.issueSession(t, testUserID)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]error, callers)

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.service.Rotate(context.Background(), pair.RefreshToken)
			results[i] = err
		}(i)
	}
	wg.Wait()

	var wins, reuses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case serviceErrors.Is(err, serviceErrors.ErrTokenReuseDetected):
			reuses++
		default:
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}

	require.Equal(t, 1, wins, "exactly one rotation should win the race")
	require.Equal(t, callers-1, reuses)
}
