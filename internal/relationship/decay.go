package relationship

import (
	"math"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

// DecayOptions tunes inactivity decay.
type DecayOptions struct {
	// After is the inactivity window before decay starts.
	After time.Duration

	// HalfLife is how long each score takes to close half its distance to
	// neutral once decay has started.
	HalfLife time.Duration
}

// DefaultDecayOptions returns the standard inactivity decay settings.
func DefaultDecayOptions() DecayOptions {
	return DecayOptions{
		After:    14 * 24 * time.Hour,
		HalfLife: 30 * 24 * time.Hour,
	}
}

// DecayState applies one sweep's worth of inactivity decay. window is the
// interval since the previous sweep; each eligible sweep moves the scores a
// window-sized step toward neutral, so repeated sweeps compound to the
// configured half-life. States within the inactivity window are returned
// unchanged. UpdatedAt still means "last interaction" and is not touched.
// Milestones, counters and rupture/repair history never decay; relationships
// fade, what happened still happened.
func DecayState(state *models.RelationshipState, now time.Time, window time.Duration, opts DecayOptions) *models.RelationshipState {
	def := DefaultDecayOptions()
	if opts.After <= 0 {
		opts.After = def.After
	}
	if opts.HalfLife <= 0 {
		opts.HalfLife = def.HalfLife
	}
	if window <= 0 {
		return state
	}

	idle := now.Sub(state.UpdatedAt)
	if idle <= opts.After {
		return state
	}

	factor := math.Pow(0.5, window.Hours()/opts.HalfLife.Hours())

	out := state.Clone()
	out.Relationship *= factor
	out.Warmth *= factor
	out.Trust *= factor
	out.Playfulness *= factor
	out.Stability *= factor
	out.Clamp()
	return out
}
