// Package cleanup runs the periodic purge of stale refresh token records.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-service/refresh"
)

const (
	// DefaultInterval is how often the sweeper purges when no interval is configured.
	DefaultInterval = 6 * time.Hour

	defaultIdleWindow       = 7 * 24 * time.Hour
	defaultRevokedRetention = 30 * 24 * time.Hour
)

// Sweeper periodically removes refresh token records that no longer serve
// rotation or reuse detection. Each sweep delegates the retention policy to
// refresh.Repo.PurgeStale, so running alongside live rotations is safe.
type Sweeper struct {
	repo             refresh.Repo
	interval         time.Duration
	idleWindow       time.Duration
	revokedRetention time.Duration
	nowFunc          func() time.Time
	logger           zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithLogger sets the logger used for sweep results and failures.
func WithLogger(logger zerolog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithNowFunc overrides the time source.
func WithNowFunc(nowFunc func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.nowFunc = nowFunc
	}
}

// WithRetentionPolicy sets how long idle-but-live records and revoked records
// are kept before a sweep purges them.
func WithRetentionPolicy(idleWindow, revokedRetention time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.idleWindow = idleWindow
		s.revokedRetention = revokedRetention
	}
}

// New creates a Sweeper. A non-positive interval falls back to DefaultInterval.
func New(repo refresh.Repo, interval time.Duration, options ...SweeperOption) (*Sweeper, error) {
	if repo == nil {
		return nil, errors.New("[cleanup.New] repo is required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sweeper{
		repo:             repo,
		interval:         interval,
		idleWindow:       defaultIdleWindow,
		revokedRetention: defaultRevokedRetention,
		nowFunc:          time.Now,
		logger:           zerolog.Nop(),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Start runs a sweep immediately and then on every interval tick until Stop is
// called or ctx is cancelled. It blocks, so callers run it in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals Start to return and waits for the current sweep to finish.
// It is safe to call more than once, but only after Start has been called.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.repo.PurgeStale(ctx, s.nowFunc(), s.idleWindow, s.revokedRetention)
	if err != nil {
		s.logger.Error().Err(err).Msg("refresh token sweep failed")
		return
	}
	if purged > 0 {
		s.logger.Info().Int64("purged", purged).Msg("purged stale refresh token records")
	}
}
