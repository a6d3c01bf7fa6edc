package relationship

import (
	"math"
	"testing"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

func TestUpdateMomentum(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("positive message lifts the level", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		out := UpdateMomentum(m, intentWith(0.8, 0.9, "happy"), now)
		if out.Level <= 0 {
			t.Errorf("expected positive level, got %f", out.Level)
		}
		if m.Level != 0 {
			t.Error("input momentum mutated")
		}
		if !out.UpdatedAt.Equal(now) {
			t.Error("UpdatedAt not advanced")
		}
	})

	t.Run("intensity scales the pull", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		strong := UpdateMomentum(m, intentWith(0.8, 0.9, "happy"), now)
		weak := UpdateMomentum(m, intentWith(0.8, 0.2, "happy"), now)
		if strong.Level <= weak.Level {
			t.Errorf("high intensity should move the level more: %f vs %f", strong.Level, weak.Level)
		}
	})

	t.Run("one contrary message does not flip the level", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		m.Level = 0.6
		m.UpdatedAt = now
		out := UpdateMomentum(m, intentWith(-0.8, 0.9, "angry"), now)
		if out.Level <= -0.2 {
			t.Errorf("single message swung the level too far: %f", out.Level)
		}
		if out.Level >= 0.6 {
			t.Errorf("level should have moved down: %f", out.Level)
		}
	})

	t.Run("level stays within bounds under repetition", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		m.UpdatedAt = now
		for i := 0; i < 50; i++ {
			m = UpdateMomentum(m, intentWith(1, 1, "excited"), now)
		}
		if m.Level > 1 || m.Level < -1 {
			t.Errorf("level escaped bounds: %f", m.Level)
		}
	})
}

func TestDecayMomentum(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("half life halves the distance to baseline", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		m.Level = 0.8
		m.UpdatedAt = now

		out := DecayMomentum(m, now.Add(momentumHalfLife))
		if math.Abs(out.Level-0.4) > 1e-9 {
			t.Errorf("expected 0.4 after one half life, got %f", out.Level)
		}
	})

	t.Run("decays toward a nonzero baseline", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		m.Baseline = 0.2
		m.Level = 1
		m.UpdatedAt = now

		out := DecayMomentum(m, now.Add(momentumHalfLife))
		if math.Abs(out.Level-0.6) > 1e-9 {
			t.Errorf("expected 0.6 after one half life, got %f", out.Level)
		}
	})

	t.Run("zero or backwards clock is a no-op", func(t *testing.T) {
		m := models.NewEmotionalMomentum("u1", now)
		m.Level = 0.8
		m.UpdatedAt = now

		out := DecayMomentum(m, now.Add(-time.Hour))
		if out.Level != 0.8 {
			t.Errorf("level changed on a backwards clock: %f", out.Level)
		}
	})

	t.Run("zero UpdatedAt does not decay", func(t *testing.T) {
		m := &models.EmotionalMomentum{UserID: "u1", Level: 0.5}

		out := DecayMomentum(m, now)
		if out.Level != 0.5 {
			t.Errorf("uninitialized timestamp should skip decay, got %f", out.Level)
		}
	})
}
