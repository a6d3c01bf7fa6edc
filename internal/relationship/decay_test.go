package relationship

import (
	"math"
	"testing"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

func seededState(userID string, updatedAt time.Time) *models.RelationshipState {
	state := models.NewRelationshipState(userID, updatedAt)
	state.Relationship = 40
	state.Warmth = 20
	state.Trust = 16
	state.Playfulness = 8
	state.Stability = 12
	state.Tier = models.TierFriend
	state.Milestones[models.MilestoneFirstJoke] = updatedAt
	state.TotalInteractions = 50
	return state
}

func TestDecayState(t *testing.T) {
	opts := DefaultDecayOptions()
	base := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("active user untouched", func(t *testing.T) {
		state := seededState("u1", base)
		out := DecayState(state, base.Add(7*day), day, opts)
		if out.Relationship != 40 {
			t.Errorf("state decayed inside the grace window: %f", out.Relationship)
		}
	})

	t.Run("idle user decays per sweep", func(t *testing.T) {
		state := seededState("u1", base)
		now := base.Add(20 * day)

		out := DecayState(state, now, day, opts)
		want := 40 * math.Pow(0.5, 1.0/30.0)
		if math.Abs(out.Relationship-want) > 1e-9 {
			t.Errorf("expected %f, got %f", want, out.Relationship)
		}
		if out.Warmth >= 20 || out.Trust >= 16 {
			t.Error("dimension scores should decay too")
		}
		if state.Relationship != 40 {
			t.Error("input state mutated")
		}
	})

	t.Run("daily sweeps compound to the half life", func(t *testing.T) {
		state := seededState("u1", base)
		out := state
		now := base.Add(15 * day)
		for i := 0; i < 30; i++ {
			now = now.Add(day)
			out = DecayState(out, now, day, opts)
		}
		// UpdatedAt still marks the last interaction, so out keeps the
		// original timestamp while the scores shrink.
		if !out.UpdatedAt.Equal(base) {
			t.Error("decay must not advance UpdatedAt")
		}
		if math.Abs(out.Relationship-20) > 0.01 {
			t.Errorf("30 daily sweeps should roughly halve the score, got %f", out.Relationship)
		}
	})

	t.Run("negative scores decay toward zero, not further down", func(t *testing.T) {
		state := seededState("u1", base)
		state.Relationship = -30
		state.Warmth = -10

		out := DecayState(state, base.Add(20*day), day, opts)
		if out.Relationship <= -30 || out.Relationship >= 0 {
			t.Errorf("negative score should shrink toward zero: %f", out.Relationship)
		}
		if out.Warmth <= -10 {
			t.Errorf("negative warmth should shrink toward zero: %f", out.Warmth)
		}
	})

	t.Run("milestones and history survive decay", func(t *testing.T) {
		state := seededState("u1", base)
		rupture := base.Add(-time.Hour)
		state.LastRuptureAt = &rupture

		out := DecayState(state, base.Add(60*day), day, opts)
		if !out.HasMilestone(models.MilestoneFirstJoke) {
			t.Error("milestone lost to decay")
		}
		if out.TotalInteractions != 50 {
			t.Error("interaction counter lost to decay")
		}
		if out.LastRuptureAt == nil {
			t.Error("rupture history lost to decay")
		}
	})

	t.Run("tier is re-derived after decay", func(t *testing.T) {
		state := seededState("u1", base)
		state.Relationship = 10.5
		state.Tier = models.TierFriend

		out := DecayState(state, base.Add(30*day), 10*day, opts)
		if out.Tier != models.TierAcquaintance {
			t.Errorf("expected acquaintance after fading below 10, got %q (score %f)", out.Tier, out.Relationship)
		}
	})

	t.Run("zero window is a no-op", func(t *testing.T) {
		state := seededState("u1", base)
		out := DecayState(state, base.Add(60*day), 0, opts)
		if out.Relationship != 40 {
			t.Errorf("zero window should not decay: %f", out.Relationship)
		}
	})
}
