// Package storage defines the persistence interfaces for relationship
// state, emotional momentum, behavior patterns, milestone events, and open
// loops, with in-memory, SQLite, and Postgres implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

var ErrNotFound = errors.New("not found")

// RelationshipStore persists one relationship state per user.
type RelationshipStore interface {
	Get(ctx context.Context, userID string) (*models.RelationshipState, error)
	Put(ctx context.Context, state *models.RelationshipState) error
	// ListUserIDs returns every user with a stored state, for decay sweeps.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// MomentumStore persists one emotional momentum record per user.
type MomentumStore interface {
	Get(ctx context.Context, userID string) (*models.EmotionalMomentum, error)
	Put(ctx context.Context, momentum *models.EmotionalMomentum) error
}

// PatternStore persists one behavior pattern record per user.
type PatternStore interface {
	Get(ctx context.Context, userID string) (*models.BehaviorPattern, error)
	Put(ctx context.Context, pattern *models.BehaviorPattern) error
}

// MilestoneStore is an append-only log of fired milestones.
type MilestoneStore interface {
	Append(ctx context.Context, event *models.MilestoneEvent) error
	List(ctx context.Context, userID string) ([]*models.MilestoneEvent, error)
}

// OpenLoopStore persists detected follow-up items.
type OpenLoopStore interface {
	Append(ctx context.Context, item *models.OpenLoopItem) error
	// ListOpen returns unresolved items for a user, oldest first.
	ListOpen(ctx context.Context, userID string) ([]*models.OpenLoopItem, error)
	Resolve(ctx context.Context, id string, at time.Time) error
	// ExpireBefore resolves every open item detected before the cutoff and
	// reports how many were expired.
	ExpireBefore(ctx context.Context, cutoff, at time.Time) (int, error)
}

// StoreSet groups storage dependencies.
type StoreSet struct {
	Relationships RelationshipStore
	Momentum      MomentumStore
	Patterns      PatternStore
	Milestones    MilestoneStore
	OpenLoops     OpenLoopStore
	closer        func() error
}

// Close closes any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
