package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

// MemoryRelationshipStore provides an in-memory RelationshipStore. Values
// are deep-copied on both reads and writes so callers can never alias the
// stored state.
type MemoryRelationshipStore struct {
	mu     sync.RWMutex
	states map[string]*models.RelationshipState
}

// NewMemoryRelationshipStore creates an in-memory relationship store.
func NewMemoryRelationshipStore() *MemoryRelationshipStore {
	return &MemoryRelationshipStore{states: make(map[string]*models.RelationshipState)}
}

func (s *MemoryRelationshipStore) Get(ctx context.Context, userID string) (*models.RelationshipState, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryRelationshipStore) Put(ctx context.Context, state *models.RelationshipState) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("state is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state.Clone()
	return nil
}

func (s *MemoryRelationshipStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryMomentumStore provides an in-memory MomentumStore.
type MemoryMomentumStore struct {
	mu      sync.RWMutex
	records map[string]models.EmotionalMomentum
}

// NewMemoryMomentumStore creates an in-memory momentum store.
func NewMemoryMomentumStore() *MemoryMomentumStore {
	return &MemoryMomentumStore{records: make(map[string]models.EmotionalMomentum)}
}

func (s *MemoryMomentumStore) Get(ctx context.Context, userID string) (*models.EmotionalMomentum, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := m
	return &out, nil
}

func (s *MemoryMomentumStore) Put(ctx context.Context, momentum *models.EmotionalMomentum) error {
	if momentum == nil || momentum.UserID == "" {
		return fmt.Errorf("momentum is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[momentum.UserID] = *momentum
	return nil
}

// MemoryPatternStore provides an in-memory PatternStore.
type MemoryPatternStore struct {
	mu       sync.RWMutex
	patterns map[string]*models.BehaviorPattern
}

// NewMemoryPatternStore creates an in-memory pattern store.
func NewMemoryPatternStore() *MemoryPatternStore {
	return &MemoryPatternStore{patterns: make(map[string]*models.BehaviorPattern)}
}

func (s *MemoryPatternStore) Get(ctx context.Context, userID string) (*models.BehaviorPattern, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pattern, ok := s.patterns[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return pattern.Clone(), nil
}

func (s *MemoryPatternStore) Put(ctx context.Context, pattern *models.BehaviorPattern) error {
	if pattern == nil || pattern.UserID == "" {
		return fmt.Errorf("pattern is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[pattern.UserID] = pattern.Clone()
	return nil
}

// MemoryMilestoneStore provides an in-memory MilestoneStore.
type MemoryMilestoneStore struct {
	mu     sync.RWMutex
	events map[string][]models.MilestoneEvent
}

// NewMemoryMilestoneStore creates an in-memory milestone log.
func NewMemoryMilestoneStore() *MemoryMilestoneStore {
	return &MemoryMilestoneStore{events: make(map[string][]models.MilestoneEvent)}
}

func (s *MemoryMilestoneStore) Append(ctx context.Context, event *models.MilestoneEvent) error {
	if event == nil || event.ID == "" || event.UserID == "" {
		return fmt.Errorf("event is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], *event)
	return nil
}

func (s *MemoryMilestoneStore) List(ctx context.Context, userID string) ([]*models.MilestoneEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[userID]
	out := make([]*models.MilestoneEvent, 0, len(events))
	for i := range events {
		e := events[i]
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// MemoryOpenLoopStore provides an in-memory OpenLoopStore.
type MemoryOpenLoopStore struct {
	mu    sync.RWMutex
	items map[string]*models.OpenLoopItem // by item ID
}

// NewMemoryOpenLoopStore creates an in-memory open-loop store.
func NewMemoryOpenLoopStore() *MemoryOpenLoopStore {
	return &MemoryOpenLoopStore{items: make(map[string]*models.OpenLoopItem)}
}

func (s *MemoryOpenLoopStore) Append(ctx context.Context, item *models.OpenLoopItem) error {
	if item == nil || item.ID == "" || item.UserID == "" {
		return fmt.Errorf("item is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryOpenLoopStore) ListOpen(ctx context.Context, userID string) ([]*models.OpenLoopItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.OpenLoopItem
	for _, item := range s.items {
		if item.UserID != userID || !item.Open() {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out, nil
}

func (s *MemoryOpenLoopStore) Resolve(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	item.ResolvedAt = &t
	return nil
}

func (s *MemoryOpenLoopStore) ExpireBefore(ctx context.Context, cutoff, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for _, item := range s.items {
		if !item.Open() || !item.DetectedAt.Before(cutoff) {
			continue
		}
		t := at
		item.ResolvedAt = &t
		expired++
	}
	return expired, nil
}

// NewMemoryStores constructs a StoreSet backed by memory.
func NewMemoryStores() StoreSet {
	return StoreSet{
		Relationships: NewMemoryRelationshipStore(),
		Momentum:      NewMemoryMomentumStore(),
		Patterns:      NewMemoryPatternStore(),
		Milestones:    NewMemoryMilestoneStore(),
		OpenLoops:     NewMemoryOpenLoopStore(),
	}
}
