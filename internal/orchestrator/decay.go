package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/attune/internal/observability"
	"github.com/haasonsaas/attune/internal/relationship"
	"github.com/haasonsaas/attune/internal/storage"
)

// cronParser supports both standard (5-field) and extended (6-field with seconds) cron expressions.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// DecaySweeper periodically fades idle relationships toward neutral. Each
// sweep covers the window since the previous one, so the configured half
// life holds regardless of the schedule.
type DecaySweeper struct {
	stores   storage.StoreSet
	opts     relationship.DecayOptions
	schedule string
	logger   *observability.Logger
	metrics  *observability.Metrics

	cron *cron.Cron

	mu        sync.Mutex
	lastSweep time.Time

	// loopRetention bounds how long an unresolved open loop stays live.
	loopRetention time.Duration

	// locks serializes each user's read-modify-write against live message
	// updates when the sweeper is built from an Orchestrator.
	locks *userLocks

	now func() time.Time
}

// defaultLoopRetention is how long an open loop can wait for a follow-up
// before the sweep expires it. Asking about a "big meeting" from a month ago
// reads worse than not asking.
const defaultLoopRetention = 30 * 24 * time.Hour

// NewDecaySweeper creates a standalone sweeper on the given cron schedule.
// When an Orchestrator processes messages against the same stores, build the
// sweeper with Orchestrator.NewDecaySweeper instead so the two share per-user
// write serialization.
func NewDecaySweeper(stores storage.StoreSet, schedule string, opts relationship.DecayOptions, logger *observability.Logger, metrics *observability.Metrics) *DecaySweeper {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &DecaySweeper{
		stores:        stores,
		opts:          opts,
		schedule:      schedule,
		logger:        logger,
		metrics:       metrics,
		loopRetention: defaultLoopRetention,
		locks:         newUserLocks(),
		now:           time.Now,
	}
}

// NewDecaySweeper creates a sweeper that shares this orchestrator's stores,
// logging, metrics, and per-user locks. A sweep for a user waits for that
// user's in-flight update instead of overwriting it.
func (o *Orchestrator) NewDecaySweeper(schedule string, opts relationship.DecayOptions) *DecaySweeper {
	s := NewDecaySweeper(o.stores, schedule, opts, o.logger, o.metrics)
	s.locks = o.locks
	return s
}

// Start schedules the sweep and begins running it.
func (s *DecaySweeper) Start() error {
	schedule, err := cronParser.Parse(s.schedule)
	if err != nil {
		return fmt.Errorf("parse decay schedule %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	s.lastSweep = s.now()
	s.mu.Unlock()

	s.cron = cron.New(cron.WithParser(cronParser))
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		if err := s.RunSweep(context.Background()); err != nil {
			s.logger.Error(context.Background(), "decay sweep failed", "error", err)
		}
	}))
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *DecaySweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunSweep decays every stored relationship that has been idle past the
// threshold. Errors on individual users are logged and skipped so one bad
// record cannot stall the sweep.
func (s *DecaySweeper) RunSweep(ctx context.Context) error {
	now := s.now()

	s.mu.Lock()
	window := now.Sub(s.lastSweep)
	s.lastSweep = now
	s.mu.Unlock()

	if window <= 0 {
		return nil
	}

	userIDs, err := s.stores.Relationships.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users for decay: %w", err)
	}

	swept := 0
	for _, userID := range userIDs {
		if s.sweepUser(ctx, userID, now, window) {
			swept++
		}
	}

	expired, err := s.stores.OpenLoops.ExpireBefore(ctx, now.Add(-s.loopRetention), now)
	if err != nil {
		s.logger.Warn(ctx, "open loop expiry failed", "error", err)
	}

	s.logger.Info(ctx, "decay sweep complete",
		"users", len(userIDs), "decayed", swept, "expired_loops", expired, "window", window.String())
	return nil
}

// sweepUser decays one user's state and momentum under that user's lock, so
// the read-modify-write cannot interleave with a live message update. It
// reports whether the state was decayed.
func (s *DecaySweeper) sweepUser(ctx context.Context, userID string, now time.Time, window time.Duration) bool {
	release := s.locks.acquire(userID)
	defer release()

	state, err := s.stores.Relationships.Get(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "decay sweep skipped user", "user_id", userID, "error", err)
		return false
	}
	decayed := relationship.DecayState(state, now, window, s.opts)
	if decayed == state {
		return false
	}
	if err := s.stores.Relationships.Put(ctx, decayed); err != nil {
		s.metrics.StoreWriteCounter.WithLabelValues("relationship", "error").Inc()
		s.logger.Warn(ctx, "decay write failed", "user_id", userID, "error", err)
		return false
	}
	s.metrics.StoreWriteCounter.WithLabelValues("relationship", "success").Inc()

	momentum, err := s.stores.Momentum.Get(ctx, userID)
	if err == nil {
		momentum = relationship.DecayMomentum(momentum, now)
		if err := s.stores.Momentum.Put(ctx, momentum); err != nil {
			s.logger.Warn(ctx, "momentum decay write failed", "user_id", userID, "error", err)
		}
	}
	return true
}
