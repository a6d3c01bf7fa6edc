package relationship

import (
	"math"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

const (
	// momentumAlpha is the EMA weight of a new message's mood signal.
	momentumAlpha = 0.3

	// momentumHalfLife is how long the level takes to close half its
	// distance to baseline with no messages.
	momentumHalfLife = 12 * time.Hour
)

// UpdateMomentum folds a classified message into the user's smoothed mood
// level: first the idle decay since the last update, then an
// intensity-modulated exponential moving average. The input is not mutated.
func UpdateMomentum(m *models.EmotionalMomentum, intent *models.MessageIntent, now time.Time) *models.EmotionalMomentum {
	out := *m
	decayMomentum(&out, now)

	signal := intent.Tone.Sentiment * intent.Tone.Intensity
	weight := momentumAlpha * (0.5 + intent.Tone.Intensity*0.5)
	out.Level = out.Level*(1-weight) + signal*weight
	out.UpdatedAt = now
	out.Clamp()
	return &out
}

// DecayMomentum returns the momentum with idle decay applied, without
// recording an interaction.
func DecayMomentum(m *models.EmotionalMomentum, now time.Time) *models.EmotionalMomentum {
	out := *m
	decayMomentum(&out, now)
	out.UpdatedAt = now
	out.Clamp()
	return &out
}

func decayMomentum(m *models.EmotionalMomentum, now time.Time) {
	if m.UpdatedAt.IsZero() || !now.After(m.UpdatedAt) {
		return
	}
	elapsed := now.Sub(m.UpdatedAt)
	factor := math.Pow(0.5, elapsed.Hours()/momentumHalfLife.Hours())
	m.Level = m.Baseline + (m.Level-m.Baseline)*factor
}
