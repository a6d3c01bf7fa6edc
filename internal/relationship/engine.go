// Package relationship implements the relationship dynamics state machine:
// dimensional score updates, tier derivation, one-shot milestones,
// rupture/repair pairing, emotional momentum, and inactivity decay.
package relationship

import (
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

// Tuning holds the state machine's score weights. Zero values are replaced
// by defaults in NewEngine.
type Tuning struct {
	// BaseScale converts sentiment*intensity into relationship points.
	BaseScale float64

	// NegativityWeight multiplies negative base changes. Trust is easy to
	// damage and slow to rebuild, so this sits between 2 and 3.
	NegativityWeight float64

	// NeutralIncrement is the flat change for a neutral message. Showing
	// up counts for a little.
	NeutralIncrement float64

	// LowEffortPenalty applies to very short, question-free messages.
	LowEffortPenalty float64

	// HighEffortBonus applies to long messages or ones asking a question.
	HighEffortBonus float64

	// RepairBonus is the extra trust/stability credit for an apology that
	// lands after an unresolved rupture.
	RepairBonus float64

	// RuptureSentiment and RuptureIntensity set the threshold at which a
	// non-hostile message still counts as a rupture.
	RuptureSentiment float64
	RuptureIntensity float64

	// LowEffortMaxWords and HighEffortMinWords bound the effort bands.
	LowEffortMaxWords  int
	HighEffortMinWords int
}

// DefaultTuning returns the standard weights.
func DefaultTuning() Tuning {
	return Tuning{
		BaseScale:          5.0,
		NegativityWeight:   2.5,
		NeutralIncrement:   0.1,
		LowEffortPenalty:   0.5,
		HighEffortBonus:    0.5,
		RepairBonus:        2.0,
		RuptureSentiment:   -0.7,
		RuptureIntensity:   0.7,
		LowEffortMaxWords:  3,
		HighEffortMinWords: 21,
	}
}

// Engine applies classified intents to relationship state. It is pure and
// total: it never fails, and unrecognized intent fields degrade to the
// neutral case rather than aborting the update.
type Engine struct {
	tuning Tuning
}

// NewEngine creates an engine, filling zero tuning fields with defaults.
func NewEngine(tuning Tuning) *Engine {
	def := DefaultTuning()
	if tuning.BaseScale <= 0 {
		tuning.BaseScale = def.BaseScale
	}
	if tuning.NegativityWeight <= 0 {
		tuning.NegativityWeight = def.NegativityWeight
	}
	if tuning.NeutralIncrement <= 0 {
		tuning.NeutralIncrement = def.NeutralIncrement
	}
	if tuning.LowEffortPenalty <= 0 {
		tuning.LowEffortPenalty = def.LowEffortPenalty
	}
	if tuning.HighEffortBonus <= 0 {
		tuning.HighEffortBonus = def.HighEffortBonus
	}
	if tuning.RepairBonus <= 0 {
		tuning.RepairBonus = def.RepairBonus
	}
	if tuning.RuptureSentiment >= 0 {
		tuning.RuptureSentiment = def.RuptureSentiment
	}
	if tuning.RuptureIntensity <= 0 {
		tuning.RuptureIntensity = def.RuptureIntensity
	}
	if tuning.LowEffortMaxWords <= 0 {
		tuning.LowEffortMaxWords = def.LowEffortMaxWords
	}
	if tuning.HighEffortMinWords <= 0 {
		tuning.HighEffortMinWords = def.HighEffortMinWords
	}
	return &Engine{tuning: tuning}
}

// Result carries the outcome of one state update.
type Result struct {
	State      *models.RelationshipState
	Milestones []models.Milestone
	Ruptured   bool
	Repaired   bool
}

// interactionKind is derived from the decoded intent; it drives the
// category-specific score layers.
type interactionKind int

const (
	kindNeutral interactionKind = iota
	kindCompliment
	kindApology
	kindJoke
	kindVulnerable
	kindHostile
)

// Apply produces the successor state for one classified message. The input
// state is not mutated; the returned state is a new value.
func (e *Engine) Apply(current *models.RelationshipState, intent *models.MessageIntent, meta models.MessageMetadata) Result {
	now := meta.SentAt
	if now.IsZero() {
		// Without a timestamp the update still proceeds; only the
		// bookkeeping fields suffer.
		now = current.UpdatedAt
	}

	state := current.Clone()
	if state.Milestones == nil {
		state.Milestones = make(map[models.Milestone]time.Time)
	}
	if intent == nil {
		intent = models.NeutralIntent()
	}

	kind := deriveKind(intent)

	// Step 1: base change from tone, negativity weighted heavier.
	base := intent.Tone.Sentiment * intent.Tone.Intensity * e.tuning.BaseScale
	if base < 0 {
		base *= e.tuning.NegativityWeight
	}

	state.Relationship += base
	state.Warmth += base * 0.6
	state.Trust += base * 0.5
	state.Playfulness += base * 0.2
	state.Stability += base * 0.3

	// Step 2: category layers on top of the base change.
	e.applyKind(state, kind, intent)

	if intent.Contradiction.IsContradicting {
		state.Stability -= 0.5
	}
	if intent.RelationshipSignal.IsInappropriate {
		state.Warmth -= 1
		state.Relationship -= 1
	}

	// Effort adjustment, skipped for fully neutral messages so a bare "ok"
	// gets exactly the flat neutral increment.
	neutral := base == 0 && kind == kindNeutral
	if neutral {
		state.Relationship += e.tuning.NeutralIncrement
	} else if meta.WordCount > 0 {
		if meta.WordCount <= e.tuning.LowEffortMaxWords && !meta.HasQuestion {
			state.Relationship -= e.tuning.LowEffortPenalty
		} else if meta.WordCount >= e.tuning.HighEffortMinWords || meta.HasQuestion {
			state.Relationship += e.tuning.HighEffortBonus
		}
	}

	// Step 6: rupture and repair are mutually exclusive outcomes of the
	// same message; rupture wins when both could match.
	result := Result{}
	ruptured := kind == kindHostile ||
		(intent.Tone.Sentiment <= e.tuning.RuptureSentiment && intent.Tone.Intensity >= e.tuning.RuptureIntensity)
	if ruptured {
		t := now
		state.LastRuptureAt = &t
		result.Ruptured = true
	} else if kind == kindApology && state.UnresolvedRupture() {
		state.Trust += e.tuning.RepairBonus
		state.Stability += e.tuning.RepairBonus * 0.75
		state.Warmth += e.tuning.RepairBonus * 0.25
		t := now
		state.LastRepairAt = &t
		result.Repaired = true
	}

	// Step 5: one-shot milestones via set union.
	result.Milestones = e.fireMilestones(state, intent, kind, result.Repaired, now)

	// Bookkeeping and invariants.
	state.TotalInteractions++
	if base > 0 {
		state.PositiveInteractions++
	}
	state.UpdatedAt = now
	state.Clamp()

	result.State = state
	return result
}

// applyKind layers category-specific bonuses and penalties. Compliments
// disproportionately warm; apologies rebuild trust and stability more than
// warmth; hostility damages trust and stability more than warmth.
func (e *Engine) applyKind(state *models.RelationshipState, kind interactionKind, intent *models.MessageIntent) {
	switch kind {
	case kindCompliment:
		state.Warmth += 2.5
		state.Relationship += 1
	case kindApology:
		state.Trust += 2
		state.Stability += 1.5
		state.Warmth += 0.5
	case kindJoke:
		state.Playfulness += 2
		state.Warmth += 0.5
	case kindVulnerable:
		state.Trust += 2.5
		state.Relationship += 1
		if intent.GenuineMoment.IsGenuine {
			state.Relationship += intent.GenuineMoment.Confidence
		}
	case kindHostile:
		state.Trust -= 3
		state.Stability -= 2.5
		state.Warmth -= 1.5
		state.Relationship -= 2
	}
}

// deriveKind maps the decoded intent to an interaction category. Signals
// outrank emotions; dismissiveness counts as hostile-lite via its negative
// sentiment rather than a separate branch.
func deriveKind(intent *models.MessageIntent) interactionKind {
	if intent.RelationshipSignal.IsHostile {
		return kindHostile
	}
	if intent.RelationshipSignal.IsVulnerable {
		return kindVulnerable
	}
	switch intent.Tone.PrimaryEmotion {
	case "apologetic":
		return kindApology
	case "affectionate":
		if intent.Tone.Sentiment > 0 {
			return kindCompliment
		}
	case "grateful":
		if intent.Tone.Sentiment > 0.3 {
			return kindCompliment
		}
	case "amused":
		if !intent.Tone.IsSarcastic {
			return kindJoke
		}
	}
	return kindNeutral
}

// fireMilestones adds first-time milestones to the state's set. A key
// already present never fires again, regardless of how often the trigger
// recurs.
func (e *Engine) fireMilestones(state *models.RelationshipState, intent *models.MessageIntent, kind interactionKind, repaired bool, now time.Time) []models.Milestone {
	var candidates []models.Milestone

	if c := intent.RelationshipSignal.MilestoneCandidate; c != "" {
		candidates = append(candidates, c)
	}
	if intent.RelationshipSignal.IsVulnerable {
		candidates = append(candidates, models.MilestoneFirstVulnerability)
	}
	if kind == kindJoke {
		candidates = append(candidates, models.MilestoneFirstJoke)
	}
	if repaired {
		candidates = append(candidates, models.MilestoneFirstSupport)
	}
	if intent.GenuineMoment.IsGenuine && intent.GenuineMoment.Category == models.GenuineDepth {
		candidates = append(candidates, models.MilestoneFirstDeepDisclosure)
	}

	var fired []models.Milestone
	for _, m := range candidates {
		if !models.KnownMilestones[m] || state.HasMilestone(m) {
			continue
		}
		state.Milestones[m] = now
		fired = append(fired, m)
	}
	return fired
}
