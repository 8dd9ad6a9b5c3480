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

// StaleSessionReaper periodically force-closes open sessions whose heartbeat
// has gone silent past the idle threshold. It runs as a background goroutine,
// is safe alongside live traffic (its writes are the same idempotent
// conditional updates the lifecycle uses), and treats a failed sweep as "log
// and try again next cycle".
type StaleSessionReaper struct {
	sessions port.SessionRepository
	events   port.EventPublisher
	logger   *zap.Logger

	interval      time.Duration
	idleThreshold time.Duration
	batchSize     int
	now           func() time.Time

	reaped      prometheus.Counter
	sweepErrors prometheus.Counter

	cancel context.CancelFunc
	done   chan struct{}
}

// ReaperConfig holds the parameters for NewStaleSessionReaper.
type ReaperConfig struct {
	// Interval is how often the sweep runs. Defaults to 2 minutes.
	Interval time.Duration
	// IdleThreshold is how long a session may go without a heartbeat before
	// it is considered abandoned. Defaults to 600 seconds.
	IdleThreshold time.Duration
	// BatchSize bounds how many sessions one sweep closes. Defaults to 500.
	BatchSize int
}

// NewStaleSessionReaper creates a reaper but does not start it. Call Start to
// begin the background loop.
func NewStaleSessionReaper(sessions port.SessionRepository, events port.EventPublisher, cfg ReaperConfig, logger *zap.Logger) *StaleSessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	idle := cfg.IdleThreshold
	if idle <= 0 {
		idle = 600 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}

	r := &StaleSessionReaper{
		sessions:      sessions,
		events:        events,
		logger:        logger,
		interval:      interval,
		idleThreshold: idle,
		batchSize:     batch,
		done:          make(chan struct{}),
	}
	r.now = func() time.Time { return time.Now().UTC() }
	return r
}

// WithClock overrides the internal clock for deterministic tests.
func (r *StaleSessionReaper) WithClock(clock func() time.Time) *StaleSessionReaper {
	if clock != nil {
		r.now = clock
	}
	return r
}

// WithMetrics attaches counters for closed sessions and sweep failures.
func (r *StaleSessionReaper) WithMetrics(reaped, sweepErrors prometheus.Counter) *StaleSessionReaper {
	r.reaped = reaped
	r.sweepErrors = sweepErrors
	return r
}

// Start begins the background loop: an immediate sweep on startup to clear
// any backlog, then one per interval. The loop exits when ctx is cancelled
// or Stop is called.
func (r *StaleSessionReaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Info("stale session reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("idle_threshold", r.idleThreshold),
		zap.Int("batch_size", r.batchSize),
	)
}

// Stop signals the reaper to exit and waits for the loop to finish. A no-op
// when the reaper was never started.
func (r *StaleSessionReaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *StaleSessionReaper) loop(ctx context.Context) {
	defer close(r.done)

	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reaping pass. Sessions still stale after a failed pass
// remain selectable, so the next scheduled sweep retries naturally.
func (r *StaleSessionReaper) Sweep(ctx context.Context) {
	cutoff := r.now().Add(-r.idleThreshold)

	closed, err := r.sessions.CloseStale(ctx, cutoff, r.batchSize)
	if err != nil {
		if r.sweepErrors != nil {
			r.sweepErrors.Inc()
		}
		r.logger.Error("stale session sweep failed", zap.Error(err))
		return
	}

	if len(closed) == 0 {
		return
	}

	if r.reaped != nil {
		r.reaped.Add(float64(len(closed)))
	}
	r.logger.Info("closed stale sessions",
		zap.Int("count", len(closed)),
		zap.Time("cutoff", cutoff),
	)

	if r.events == nil {
		return
	}
	for _, session := range closed {
		if session.ExitTime == nil {
			continue
		}
		event := domain.SessionClosedEvent{
			EventID:   uuid.NewString(),
			SessionID: session.ID,
			UserID:    session.UserID,
			SpaceID:   session.SpaceID,
			ExitTime:  *session.ExitTime,
			Reason:    domain.CloseReasonIdle,
		}
		if err := r.events.PublishSessionClosed(ctx, event); err != nil {
			r.logger.Warn("publish reaped session event failed",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}
}
