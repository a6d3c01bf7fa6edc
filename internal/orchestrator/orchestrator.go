// Package orchestrator runs the background update pipeline: each incoming
// message is classified once, then fanned out to the relationship state
// machine, the behavior pattern tracker, and the open-loop tracker. Updates
// for one user are serialized; different users proceed concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/attune/internal/observability"
	"github.com/haasonsaas/attune/internal/relationship"
	"github.com/haasonsaas/attune/internal/retry"
	"github.com/haasonsaas/attune/internal/storage"
	"github.com/haasonsaas/attune/pkg/models"
)

// Classifier is the dispatch entry point the orchestrator consumes.
type Classifier interface {
	Classify(ctx context.Context, message string, turns []models.ContextTurn) *models.MessageIntent
}

// Options tunes the orchestrator.
type Options struct {
	// MaxInFlightPerUser caps queued updates per user. A user who sends
	// faster than updates complete loses the excess messages rather than
	// growing an unbounded backlog.
	MaxInFlightPerUser int

	// WorkerIdleTimeout retires a user's worker goroutine and queue after
	// this long without messages. The next message spawns a fresh worker.
	WorkerIdleTimeout time.Duration

	// Retry applies to persistence writes.
	Retry retry.Config
}

// DefaultOptions returns the standard orchestrator settings.
func DefaultOptions() Options {
	return Options{
		MaxInFlightPerUser: 4,
		WorkerIdleTimeout:  5 * time.Minute,
		Retry:              retry.DefaultConfig(),
	}
}

// Message is one inbound user message to process.
type Message struct {
	UserID string
	Text   string
	Turns  []models.ContextTurn
	SentAt time.Time
}

// Orchestrator owns the background update pipeline.
type Orchestrator struct {
	classifier Classifier
	engine     *relationship.Engine
	stores     storage.StoreSet
	opts       Options
	logger     *observability.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
	wg     sync.WaitGroup

	// locks serializes read-modify-write access to one user's stored state
	// across the workers and the decay sweep.
	locks *userLocks

	now func() time.Time
}

// New creates an orchestrator. The classifier and engine are required; nil
// logger or metrics degrade to no-ops.
func New(classifier Classifier, engine *relationship.Engine, stores storage.StoreSet, opts Options, logger *observability.Logger, metrics *observability.Metrics) *Orchestrator {
	def := DefaultOptions()
	if opts.MaxInFlightPerUser <= 0 {
		opts.MaxInFlightPerUser = def.MaxInFlightPerUser
	}
	if opts.WorkerIdleTimeout <= 0 {
		opts.WorkerIdleTimeout = def.WorkerIdleTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = def.Retry
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Orchestrator{
		classifier: classifier,
		engine:     engine,
		stores:     stores,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		queues:     make(map[string]chan Message),
		locks:      newUserLocks(),
		now:        time.Now,
	}
}

// OnMessage enqueues a message for background processing and returns
// immediately. It reports false when the message was dropped, either because
// the user's queue is full or the orchestrator is closed.
func (o *Orchestrator) OnMessage(msg Message) bool {
	if msg.UserID == "" || msg.Text == "" {
		return false
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = o.now()
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	queue, ok := o.queues[msg.UserID]
	if !ok {
		queue = make(chan Message, o.opts.MaxInFlightPerUser)
		o.queues[msg.UserID] = queue
		go o.worker(msg.UserID, queue)
	}

	// The send stays under the mutex so an idle worker cannot retire this
	// queue between the lookup above and the send. The channel is buffered,
	// so holding the lock here never blocks.
	select {
	case queue <- msg:
		o.wg.Add(1)
		o.mu.Unlock()
		return true
	default:
		o.mu.Unlock()
		o.metrics.DroppedMessageCounter.Inc()
		o.logger.Warn(context.Background(), "update dropped, user queue full",
			"user_id", msg.UserID)
		return false
	}
}

// Wait blocks until every accepted message has been processed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops accepting messages, drains in-flight work, and shuts the
// workers down.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	queues := o.queues
	o.mu.Unlock()

	o.wg.Wait()
	for _, queue := range queues {
		close(queue)
	}
}

// worker drains one user's queue. One goroutine per user keeps that user's
// updates strictly ordered. A worker that sits idle past the timeout retires
// itself and removes its queue, so a long-lived host does not accumulate one
// goroutine per user ever seen.
func (o *Orchestrator) worker(userID string, queue chan Message) {
	idle := time.NewTimer(o.opts.WorkerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case msg, ok := <-queue:
			if !ok {
				return
			}
			o.process(msg)
			o.wg.Done()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.opts.WorkerIdleTimeout)
		case <-idle.C:
			o.mu.Lock()
			if len(queue) > 0 || o.closed {
				// A message landed between the timeout firing and the lock,
				// or Close is about to drain this queue. Keep running.
				o.mu.Unlock()
				idle.Reset(o.opts.WorkerIdleTimeout)
				continue
			}
			delete(o.queues, userID)
			o.mu.Unlock()
			return
		}
	}
}

// process classifies one message and fans the result out to the update
// branches. A failing branch never affects its siblings.
func (o *Orchestrator) process(msg Message) {
	o.metrics.InFlightUpdates.Inc()
	defer o.metrics.InFlightUpdates.Dec()

	// The caller has long since moved on; background work gets its own
	// context.
	ctx := context.Background()

	intent := o.classifier.Classify(ctx, msg.Text, msg.Turns)
	meta := models.DeriveMessageMetadata(msg.Text, msg.SentAt)

	var branches sync.WaitGroup
	branches.Add(3)
	go o.runBranch(ctx, &branches, "relationship", func() error {
		return o.updateRelationship(ctx, msg.UserID, intent, meta)
	})
	go o.runBranch(ctx, &branches, "patterns", func() error {
		return o.updatePatterns(ctx, msg.UserID, intent, meta)
	})
	go o.runBranch(ctx, &branches, "open_loops", func() error {
		return o.recordOpenLoop(ctx, msg.UserID, intent, meta)
	})
	branches.Wait()
}

// runBranch isolates one update branch: panics are recovered and both
// panics and errors are counted and logged without propagating.
func (o *Orchestrator) runBranch(ctx context.Context, wg *sync.WaitGroup, name string, fn func() error) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			o.metrics.BranchErrorCounter.WithLabelValues(name).Inc()
			o.logger.Error(ctx, "update branch panicked",
				"branch", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		o.metrics.BranchErrorCounter.WithLabelValues(name).Inc()
		o.logger.Error(ctx, "update branch failed", "branch", name, "error", err)
	}
}

// updateRelationship applies the classified intent to the user's
// relationship state and momentum, then persists both and logs any fired
// milestones.
func (o *Orchestrator) updateRelationship(ctx context.Context, userID string, intent *models.MessageIntent, meta models.MessageMetadata) error {
	// The queue already serializes messages for one user; the lock extends
	// that exclusion to the decay sweep, which reads and writes the same
	// rows outside any queue.
	release := o.locks.acquire(userID)
	defer release()

	state, err := o.stores.Relationships.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		state = models.NewRelationshipState(userID, meta.SentAt)
	} else if err != nil {
		return fmt.Errorf("load relationship state: %w", err)
	}

	res := o.engine.Apply(state, intent, meta)

	if err := o.persist(ctx, "relationship", func() error {
		return o.stores.Relationships.Put(ctx, res.State)
	}); err != nil {
		return err
	}

	momentum, err := o.stores.Momentum.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		momentum = models.NewEmotionalMomentum(userID, meta.SentAt)
	} else if err != nil {
		return fmt.Errorf("load momentum: %w", err)
	}
	momentum = relationship.UpdateMomentum(momentum, intent, meta.SentAt)
	if err := o.persist(ctx, "momentum", func() error {
		return o.stores.Momentum.Put(ctx, momentum)
	}); err != nil {
		return err
	}

	if res.Ruptured {
		o.metrics.RuptureCounter.WithLabelValues("rupture").Inc()
		o.logger.Info(ctx, "relationship rupture", "user_id", userID)
	}
	if res.Repaired {
		o.metrics.RuptureCounter.WithLabelValues("repair").Inc()
		o.logger.Info(ctx, "relationship repair", "user_id", userID)
	}

	for _, milestone := range res.Milestones {
		event := &models.MilestoneEvent{
			ID:        uuid.NewString(),
			UserID:    userID,
			Milestone: milestone,
			At:        meta.SentAt,
		}
		if err := o.persist(ctx, "milestone", func() error {
			return o.stores.Milestones.Append(ctx, event)
		}); err != nil {
			return err
		}
		o.metrics.MilestoneCounter.WithLabelValues(string(milestone)).Inc()
		o.logger.Info(ctx, "milestone reached",
			"user_id", userID, "milestone", string(milestone))
	}
	return nil
}

// persist runs a store write with retry and records its outcome.
func (o *Orchestrator) persist(ctx context.Context, store string, op func() error) error {
	err := retry.Do(ctx, o.opts.Retry, op)
	if err != nil {
		o.metrics.StoreWriteCounter.WithLabelValues(store, "error").Inc()
		return fmt.Errorf("persist %s: %w", store, err)
	}
	o.metrics.StoreWriteCounter.WithLabelValues(store, "success").Inc()
	return nil
}
