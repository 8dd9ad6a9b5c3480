package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
)

// ExpiredGrantSweeper periodically revokes grants whose expiry has passed.
// The gate already checks expiry on every read, so the sweeper is a
// consistency cleanup, not a correctness requirement: the system stays
// correct if it is delayed or down.
type ExpiredGrantSweeper struct {
	grants port.PermissionRepository
	cache  port.GrantCache
	events port.EventPublisher
	logger *zap.Logger

	interval time.Duration
	now      func() time.Time

	revoked     prometheus.Counter
	sweepErrors prometheus.Counter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpiredGrantSweeper creates a sweeper but does not start it. An interval
// of zero defaults to 5 minutes.
func NewExpiredGrantSweeper(grants port.PermissionRepository, cache port.GrantCache, events port.EventPublisher, interval time.Duration, logger *zap.Logger) *ExpiredGrantSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s := &ExpiredGrantSweeper{
		grants:   grants,
		cache:    cache,
		events:   events,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
	s.now = func() time.Time { return time.Now().UTC() }
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ExpiredGrantSweeper) WithClock(clock func() time.Time) *ExpiredGrantSweeper {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics attaches counters for revoked grants and sweep failures.
func (s *ExpiredGrantSweeper) WithMetrics(revoked, sweepErrors prometheus.Counter) *ExpiredGrantSweeper {
	s.revoked = revoked
	s.sweepErrors = sweepErrors
	return s
}

// Start begins the background loop: an immediate sweep, then one per
// interval, until ctx is cancelled or Stop is called.
func (s *ExpiredGrantSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Info("expired grant sweeper started", zap.Duration("interval", s.interval))
}

// Stop signals the sweeper to exit and waits for the loop to finish. A no-op
// when the sweeper was never started.
func (s *ExpiredGrantSweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *ExpiredGrantSweeper) loop(ctx context.Context) {
	defer close(s.done)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one revocation pass. Re-running once all matches are revoked is
// a no-op by construction of the store predicate.
func (s *ExpiredGrantSweeper) Sweep(ctx context.Context) {
	now := s.now()

	revoked, err := s.grants.RevokeExpired(ctx, now)
	if err != nil {
		if s.sweepErrors != nil {
			s.sweepErrors.Inc()
		}
		s.logger.Error("expired grant sweep failed", zap.Error(err))
		return
	}

	if len(revoked) == 0 {
		return
	}

	if s.revoked != nil {
		s.revoked.Add(float64(len(revoked)))
	}
	s.logger.Info("revoked expired grants", zap.Int("count", len(revoked)))

	for _, grant := range revoked {
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, grant.UserID, grant.SpaceID); err != nil {
				s.logger.Warn("grant cache invalidation failed",
					zap.String("user_id", grant.UserID),
					zap.String("space_id", grant.SpaceID),
					zap.Error(err),
				)
			}
		}
		if s.events == nil {
			continue
		}
		revokedAt := now
		if grant.RevokedAt != nil {
			revokedAt = *grant.RevokedAt
		}
		event := domain.GrantRevokedEvent{
			EventID:   uuid.NewString(),
			UserID:    grant.UserID,
			SpaceID:   grant.SpaceID,
			RevokedBy: "system",
			RevokedAt: revokedAt,
			Reason:    "expired",
		}
		if err := s.events.PublishGrantRevoked(ctx, event); err != nil {
			s.logger.Warn("publish expired grant event failed",
				zap.String("user_id", grant.UserID),
				zap.String("space_id", grant.SpaceID),
				zap.Error(err),
			)
		}
	}
}
