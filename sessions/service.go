// Package sessions implements the refresh-token lifecycle: issuance,
// one-time-use rotation, idle and absolute expiry, and the cascading
// revocation that answers a detected token replay.
package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	serviceErrors "github.com/jrsteele09/go-session-service/internal/errors"
	"github.com/jrsteele09/go-session-service/internal/utils"
	"github.com/jrsteele09/go-session-service/refresh"
	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/token/denylist"
	tokenjwt "github.com/jrsteele09/go-session-service/token/jwt"
)

// Metadata is the audit-only device information captured at issuance. It
// never participates in validation decisions.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Service is the rotation and theft-detection engine. It is stateless
// between calls; all session state lives in the refresh record store, so
// concurrent requests coordinate only through the store's conditional
// updates.
type Service struct {
	repo        refresh.Repo
	access      *tokenjwt.Creator
	denylist    denylist.Denylist
	tokenLength int
	refreshTTL  time.Duration
	idleWindow  time.Duration
	nowFunc     func() time.Time
	logger      zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithLogger sets the logger used for security events.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDenylist attaches an access-token denylist fed on cascading
// revocation and revoke-all, so resource servers can reject still-valid
// access tokens immediately instead of waiting out their expiry.
func WithDenylist(d denylist.Denylist) ServiceOption {
	return func(s *Service) {
		s.denylist = d
	}
}

// WithTokenPolicy sets the absolute refresh lifetime and the idle window.
func WithTokenPolicy(refreshTTL, idleWindow time.Duration) ServiceOption {
	return func(s *Service) {
		s.refreshTTL = refreshTTL
		s.idleWindow = idleWindow
	}
}

// WithTokenLength sets the refresh token length in random bytes.
func WithTokenLength(length int) ServiceOption {
	return func(s *Service) {
		s.tokenLength = length
	}
}

// NewService initializes the engine with its record store and access-token
// creator. Defaults: 14 day refresh lifetime, 7 day idle window, 32 byte
// tokens, wall-clock time, no denylist, no logging.
func NewService(repo refresh.Repo, access *tokenjwt.Creator, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] refresh repo is required")
	}
	if access == nil {
		return nil, errors.New("[NewService] access token creator is required")
	}

	s := &Service{
		repo:        repo,
		access:      access,
		tokenLength: token.DefaultLength,
		refreshTTL:  14 * 24 * time.Hour,
		idleWindow:  7 * 24 * time.Hour,
		nowFunc:     time.Now,
		logger:      zerolog.Nop(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Issue creates a new session for the user: a fresh opaque refresh token
// persisted as a digest, paired with a short-lived access token. The
// plaintext refresh token exists only in the returned pair.
func (s *Service) Issue(ctx context.Context, userID string, meta Metadata) (*token.Pair, error) {
	if userID == "" {
		return nil, errors.New("[Service.Issue] userID is required")
	}
	userAgent, ipAddress := recordMetadata(meta)
	return s.issue(ctx, userID, userAgent, ipAddress)
}

// Rotate exchanges a live refresh token for a new pair. A refresh token is
// valid for exactly one successful rotation; presenting it a second time
// is treated as evidence of theft and revokes every session the user has.
func (s *Service) Rotate(ctx context.Context, plaintext string) (*token.Pair, error) {
	now := s.nowFunc()

	record, err := s.repo.GetByHash(ctx, token.Hash(plaintext), true)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Rotate] GetByHash")
	}
	if record == nil {
		return nil, serviceErrors.ErrInvalidRefreshToken
	}

	if !record.Live() {
		// The token was already rotated or revoked: someone is replaying a
		// dead credential. Either the attacker is late, or the attacker
		// rotated first and the legitimate client is late; the engine
		// cannot tell which token leaked, so every session goes.
		return nil, s.reuseDetected(ctx, record, now)
	}

	if record.Expired(now) {
		s.retire(ctx, record.ID, refresh.ReasonExpired, now)
		return nil, serviceErrors.ErrInvalidRefreshToken
	}
	if record.Idle(now, s.idleWindow) {
		s.retire(ctx, record.ID, refresh.ReasonIdleTimeout, now)
		return nil, serviceErrors.ErrInvalidRefreshToken
	}

	won, err := s.repo.RevokeIfLive(ctx, record.ID, refresh.ReasonRotated, now)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Rotate] RevokeIfLive")
	}
	if !won {
		// A concurrent rotation got here first; this caller holds what is
		// now a dead token, which is exactly the reuse case.
		return nil, s.reuseDetected(ctx, record, now)
	}
	if err := s.repo.SoftDelete(ctx, record.ID, now); err != nil {
		return nil, errors.Wrap(err, "[Service.Rotate] SoftDelete")
	}

	// The successor keeps the device metadata captured at login.
	pair, err := s.issue(ctx, record.UserID, record.UserAgent, record.IPAddress)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Rotate] issue successor")
	}
	return pair, nil
}

// Revoke ends the session for the given refresh token (logout). Revoking
// a token that is already dead, or that never existed, is a no-op
// success: logout never fails loudly.
func (s *Service) Revoke(ctx context.Context, plaintext string) error {
	now := s.nowFunc()

	record, err := s.repo.GetByHash(ctx, token.Hash(plaintext), false)
	if err != nil {
		return errors.Wrap(err, "[Service.Revoke] GetByHash")
	}
	if record == nil || !record.Live() {
		return nil
	}

	won, err := s.repo.RevokeIfLive(ctx, record.ID, refresh.ReasonLogout, now)
	if err != nil {
		return errors.Wrap(err, "[Service.Revoke] RevokeIfLive")
	}
	if !won {
		return nil // already retired by a concurrent caller
	}
	if err := s.repo.SoftDelete(ctx, record.ID, now); err != nil {
		return errors.Wrap(err, "[Service.Revoke] SoftDelete")
	}
	return nil
}

// RevokeAll revokes every live session the user has, with the supplied
// reason (logout-all, password change). Returns the number of sessions
// revoked.
func (s *Service) RevokeAll(ctx context.Context, userID string, reason refresh.Reason) (int64, error) {
	if !reason.Valid() {
		return 0, errors.Errorf("[Service.RevokeAll] invalid reason %q", reason)
	}
	now := s.nowFunc()

	count, err := s.repo.RevokeAllForUser(ctx, userID, reason, now)
	if err != nil {
		return 0, errors.Wrap(err, "[Service.RevokeAll] RevokeAllForUser")
	}
	s.blockAccessTokens(ctx, userID, now)

	s.logger.Info().
		Str("user_id", userID).
		Str("reason", string(reason)).
		Int64("sessions", count).
		Msg("revoked all sessions")
	return count, nil
}

// ListSessions returns the user's active sessions for a "my devices"
// view: identifiers, timestamps and device metadata only, never digests.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	records, err := s.repo.ListActiveForUser(ctx, userID, s.nowFunc())
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ListSessions] ListActiveForUser")
	}

	summaries := make([]SessionSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, summaryFromRecord(record))
	}
	return summaries, nil
}

// RevokeSession revokes one of the user's sessions by ID. Returns false
// when the session does not belong to the user or is already dead.
func (s *Service) RevokeSession(ctx context.Context, sessionID uuid.UUID, userID string) (bool, error) {
	ok, err := s.repo.RevokeByID(ctx, sessionID, userID, refresh.ReasonLogout, s.nowFunc())
	if err != nil {
		return false, errors.Wrap(err, "[Service.RevokeSession] RevokeByID")
	}
	return ok, nil
}

func (s *Service) issue(ctx context.Context, userID string, userAgent, ipAddress *string) (*token.Pair, error) {
	now := s.nowFunc()

	plaintext, err := token.Generate(s.tokenLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] Generate")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] NewV7")
	}

	expiresAt := now.Add(s.refreshTTL)
	record := &refresh.Record{
		ID:         id,
		UserID:     userID,
		TokenHash:  token.Hash(plaintext),
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastUsedAt: now,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, errors.Wrap(err, "[Service.issue] Create")
	}

	accessToken, err := s.access.Create(userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] access Create")
	}

	return &token.Pair{
		AccessToken:  accessToken,
		RefreshToken: plaintext,
		ExpiresAt:    expiresAt,
	}, nil
}

// reuseDetected is the anomaly response: revoke the user's entire live
// session set, poison their unexpired access tokens, and report the
// distinct reuse error.
func (s *Service) reuseDetected(ctx context.Context, record *refresh.Record, now time.Time) error {
	count, err := s.repo.RevokeAllForUser(ctx, record.UserID, refresh.ReasonSuspiciousActivity, now)
	if err != nil {
		return errors.Wrap(err, "[Service.reuseDetected] RevokeAllForUser")
	}
	s.blockAccessTokens(ctx, record.UserID, now)

	s.logger.Warn().
		Str("user_id", record.UserID).
		Str("session_id", record.ID.String()).
		Int64("sessions_revoked", count).
		Msg("refresh token reuse detected, all sessions revoked")
	return serviceErrors.ErrTokenReuseDetected
}

// retire is the two-phase revoke + soft-delete for expiry and idle
// timeout. Losing the conditional update means a concurrent call already
// retired the record, which is fine here: the caller still gets
// ErrInvalidRefreshToken.
func (s *Service) retire(ctx context.Context, id uuid.UUID, reason refresh.Reason, now time.Time) {
	won, err := s.repo.RevokeIfLive(ctx, id, reason, now)
	if err != nil || !won {
		return
	}
	if err := s.repo.SoftDelete(ctx, id, now); err != nil {
		s.logger.Error().Err(err).Str("session_id", id.String()).Msg("soft delete after revoke failed")
	}
}

// blockAccessTokens feeds the denylist watermark. Best-effort: the
// refresh-side revocation already happened, and short-lived access tokens
// expire on their own even if the denylist is down.
func (s *Service) blockAccessTokens(ctx context.Context, userID string, now time.Time) {
	if s.denylist == nil {
		return
	}
	if err := s.denylist.Block(ctx, userID, now, now.Add(s.access.Expiry())); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("access token denylist update failed")
	}
}

func recordMetadata(meta Metadata) (userAgent, ipAddress *string) {
	if meta.UserAgent != "" {
		userAgent = utils.Ptr(meta.UserAgent)
	}
	if meta.IPAddress != "" {
		ipAddress = utils.Ptr(meta.IPAddress)
	}
	return userAgent, ipAddress
}
