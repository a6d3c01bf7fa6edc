package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/attune/internal/relationship"
	"github.com/haasonsaas/attune/internal/storage"
	"github.com/haasonsaas/attune/pkg/models"
)

func TestRunSweep(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	newSweeper := func(stores storage.StoreSet) *DecaySweeper {
		s := NewDecaySweeper(stores, "0 3 * * *", relationship.DefaultDecayOptions(), nil, nil)
		return s
	}

	t.Run("idle users fade, active users do not", func(t *testing.T) {
		stores := storage.NewMemoryStores()

		idle := models.NewRelationshipState("idle", base)
		idle.Relationship = 40
		_ = stores.Relationships.Put(ctx, idle)

		active := models.NewRelationshipState("active", base.Add(29*day))
		active.Relationship = 40
		_ = stores.Relationships.Put(ctx, active)

		s := newSweeper(stores)
		s.lastSweep = base.Add(29 * day)
		s.now = func() time.Time { return base.Add(30 * day) }

		if err := s.RunSweep(ctx); err != nil {
			t.Fatal(err)
		}

		got, _ := stores.Relationships.Get(ctx, "idle")
		if got.Relationship >= 40 {
			t.Errorf("idle state did not decay: %f", got.Relationship)
		}
		gotActive, _ := stores.Relationships.Get(ctx, "active")
		if gotActive.Relationship != 40 {
			t.Errorf("active state decayed: %f", gotActive.Relationship)
		}
	})

	t.Run("sweep decays momentum alongside", func(t *testing.T) {
		stores := storage.NewMemoryStores()

		state := models.NewRelationshipState("u1", base)
		state.Relationship = 40
		_ = stores.Relationships.Put(ctx, state)

		m := models.NewEmotionalMomentum("u1", base)
		m.Level = 0.8
		_ = stores.Momentum.Put(ctx, m)

		s := newSweeper(stores)
		s.lastSweep = base.Add(29 * day)
		s.now = func() time.Time { return base.Add(30 * day) }

		if err := s.RunSweep(ctx); err != nil {
			t.Fatal(err)
		}
		got, err := stores.Momentum.Get(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Level >= 0.1 {
			t.Errorf("momentum did not decay over a month: %f", got.Level)
		}
	})

	t.Run("stale open loops expire", func(t *testing.T) {
		stores := storage.NewMemoryStores()

		_ = stores.OpenLoops.Append(ctx, &models.OpenLoopItem{
			ID: "stale", UserID: "u1", Type: models.OpenLoopEvent, DetectedAt: base,
		})
		_ = stores.OpenLoops.Append(ctx, &models.OpenLoopItem{
			ID: "fresh", UserID: "u1", Type: models.OpenLoopConcern, DetectedAt: base.Add(35 * day),
		})

		s := newSweeper(stores)
		s.lastSweep = base.Add(35 * day)
		s.now = func() time.Time { return base.Add(36 * day) }

		if err := s.RunSweep(ctx); err != nil {
			t.Fatal(err)
		}
		open, err := stores.OpenLoops.ListOpen(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if len(open) != 1 || open[0].ID != "fresh" {
			t.Errorf("expected only the fresh loop to stay open, got %+v", open)
		}
	})

	t.Run("empty store is a no-op", func(t *testing.T) {
		s := newSweeper(storage.NewMemoryStores())
		s.lastSweep = base
		s.now = func() time.Time { return base.Add(day) }
		if err := s.RunSweep(ctx); err != nil {
			t.Fatal(err)
		}
	})
}

func TestDecaySweeperStartRejectsBadSchedule(t *testing.T) {
	s := NewDecaySweeper(storage.NewMemoryStores(), "not a schedule", relationship.DefaultDecayOptions(), nil, nil)
	if err := s.Start(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSweepSerializesWithLiveUpdates(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	stores := storage.NewMemoryStores()
	state := models.NewRelationshipState("u1", base)
	state.Relationship = 40
	_ = stores.Relationships.Put(ctx, state)

	o := New(&fakeClassifier{}, relationship.NewEngine(relationship.Tuning{}), stores,
		Options{Retry: fastRetry()}, nil, nil)
	defer o.Close()

	s := o.NewDecaySweeper("0 3 * * *", relationship.DefaultDecayOptions())
	s.lastSweep = base.Add(29 * day)
	s.now = func() time.Time { return base.Add(30 * day) }

	// Hold u1's lock the way an in-flight update does, then start the sweep.
	release := o.locks.acquire("u1")
	done := make(chan struct{})
	go func() {
		_ = s.RunSweep(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("sweep finished while the user's update lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	got, _ := stores.Relationships.Get(ctx, "u1")
	if got.Relationship != 40 {
		t.Fatalf("sweep wrote state while the lock was held: %f", got.Relationship)
	}

	release()
	<-done
	got, _ = stores.Relationships.Get(ctx, "u1")
	if got.Relationship >= 40 {
		t.Errorf("sweep did not decay after the lock was released: %f", got.Relationship)
	}
}
