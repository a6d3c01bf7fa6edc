package models

import "time"

// Score bounds. The composite relationship score has a wider range than the
// individual dimensions so the six tier bands have room to spread.
const (
	RelationshipMin = -100.0
	RelationshipMax = 100.0
	DimensionMin    = -50.0
	DimensionMax    = 50.0
)

// WarmthGateThreshold is the secondary eligibility gate: tier-gated behaviors
// outside this core unlock only when warmth has reached this level. The tier
// value itself is unconditional.
const WarmthGateThreshold = 10.0

// Tier is the ordered relationship band derived purely from the relationship
// score. It is never stored independently of the score that produced it.
type Tier string

const (
	TierAdversarial     Tier = "adversarial"
	TierNeutralNegative Tier = "neutral_negative"
	TierAcquaintance    Tier = "acquaintance"
	TierFriend          Tier = "friend"
	TierCloseFriend     Tier = "close_friend"
	TierDeeplyLoving    Tier = "deeply_loving"
)

// TierFromScore maps a relationship score to its band. Bands are fixed and
// non-overlapping.
func TierFromScore(score float64) Tier {
	switch {
	case score <= -50:
		return TierAdversarial
	case score < -9:
		return TierNeutralNegative
	case score < 10:
		return TierAcquaintance
	case score < 50:
		return TierFriend
	case score < 100:
		return TierCloseFriend
	default:
		return TierDeeplyLoving
	}
}

// Milestone is a relationship event that fires at most once ever per user.
type Milestone string

const (
	MilestoneFirstVulnerability  Milestone = "first_vulnerability"
	MilestoneFirstJoke           Milestone = "first_joke"
	MilestoneFirstSupport        Milestone = "first_support"
	MilestoneFirstDeepDisclosure Milestone = "first_deep_disclosure"
)

// KnownMilestones is the closed set of valid milestone keys.
var KnownMilestones = map[Milestone]bool{
	MilestoneFirstVulnerability:  true,
	MilestoneFirstJoke:           true,
	MilestoneFirstSupport:        true,
	MilestoneFirstDeepDisclosure: true,
}

// MilestoneEvent is emitted when a milestone fires, for the host's
// notification or logging layer.
type MilestoneEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Milestone Milestone `json:"milestone"`
	At        time.Time `json:"at"`
}

// RelationshipState is the long-lived relationship/mood state for one
// user-agent pair. It is created on first interaction, mutated exclusively by
// the state machine, and decayed toward neutral on long inactivity - never
// deleted.
type RelationshipState struct {
	UserID string `json:"user_id"`

	// Dimensional scores. Relationship is the composite; the others are
	// facets. All are clamped to their bounds after every update.
	Relationship float64 `json:"relationship"` // [-100,100]
	Warmth       float64 `json:"warmth"`       // [-50,50]
	Trust        float64 `json:"trust"`        // [-50,50]
	Playfulness  float64 `json:"playfulness"`  // [-50,50]
	Stability    float64 `json:"stability"`    // [-50,50]

	// Tier is always a pure function of Relationship; re-derived after
	// every update.
	Tier Tier `json:"tier"`

	TotalInteractions    int `json:"total_interactions"`
	PositiveInteractions int `json:"positive_interactions"`

	// Milestones maps each fired milestone to the time it fired. Adds are
	// set-union: a key already present is never overwritten.
	Milestones map[Milestone]time.Time `json:"milestones,omitempty"`

	LastRuptureAt *time.Time `json:"last_rupture_at,omitempty"`
	LastRepairAt  *time.Time `json:"last_repair_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRelationshipState returns the neutral default state for a new user.
func NewRelationshipState(userID string, now time.Time) *RelationshipState {
	return &RelationshipState{
		UserID:     userID,
		Tier:       TierAcquaintance,
		Milestones: make(map[Milestone]time.Time),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clamp forces every dimensional score back inside its documented bound and
// re-derives the tier. Idempotent.
func (s *RelationshipState) Clamp() {
	s.Relationship = ClampFloat(s.Relationship, RelationshipMin, RelationshipMax)
	s.Warmth = ClampFloat(s.Warmth, DimensionMin, DimensionMax)
	s.Trust = ClampFloat(s.Trust, DimensionMin, DimensionMax)
	s.Playfulness = ClampFloat(s.Playfulness, DimensionMin, DimensionMax)
	s.Stability = ClampFloat(s.Stability, DimensionMin, DimensionMax)
	s.Tier = TierFromScore(s.Relationship)
}

// HasMilestone reports whether the milestone has already fired.
func (s *RelationshipState) HasMilestone(m Milestone) bool {
	_, ok := s.Milestones[m]
	return ok
}

// TierUnlocked reports whether tier-gated behaviors are eligible. The gate is
// warmth-based and separate from the tier value itself.
func (s *RelationshipState) TierUnlocked() bool {
	return s.Warmth >= WarmthGateThreshold
}

// UnresolvedRupture reports whether a rupture is recorded with no repair
// after it.
func (s *RelationshipState) UnresolvedRupture() bool {
	if s.LastRuptureAt == nil {
		return false
	}
	return s.LastRepairAt == nil || s.LastRepairAt.Before(*s.LastRuptureAt)
}

// Clone returns a deep copy of the state.
func (s *RelationshipState) Clone() *RelationshipState {
	if s == nil {
		return nil
	}
	out := *s
	out.Milestones = make(map[Milestone]time.Time, len(s.Milestones))
	for k, v := range s.Milestones {
		out.Milestones[k] = v
	}
	if s.LastRuptureAt != nil {
		t := *s.LastRuptureAt
		out.LastRuptureAt = &t
	}
	if s.LastRepairAt != nil {
		t := *s.LastRepairAt
		out.LastRepairAt = &t
	}
	return &out
}

// EmotionalMomentum is a smoothed per-user mood level. Each classified
// message nudges it; it decays toward its baseline between sessions.
type EmotionalMomentum struct {
	UserID    string    `json:"user_id"`
	Level     float64   `json:"level"`    // [-1,1]
	Baseline  float64   `json:"baseline"` // [-1,1]
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEmotionalMomentum returns a momentum at baseline for a new user.
func NewEmotionalMomentum(userID string, now time.Time) *EmotionalMomentum {
	return &EmotionalMomentum{UserID: userID, UpdatedAt: now}
}

// Clamp forces the level and baseline back inside [-1,1].
func (m *EmotionalMomentum) Clamp() {
	m.Level = ClampFloat(m.Level, -1, 1)
	m.Baseline = ClampFloat(m.Baseline, -1, 1)
}
