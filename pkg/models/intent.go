package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Role indicates the author of a context turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContextTurn is one prior turn in the rolling conversation window.
type ContextTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// IntentSource records which path produced a MessageIntent.
type IntentSource string

const (
	// SourceGateway means the intent came from the LLM classification endpoint.
	SourceGateway IntentSource = "gateway"

	// SourceFallback means the deterministic keyword classifier produced it.
	SourceFallback IntentSource = "fallback"

	// SourceCache means the intent was served from the classification cache.
	SourceCache IntentSource = "cache"

	// SourceDefault means the message was bypassed and a fixed neutral
	// intent was returned without any classification work.
	SourceDefault IntentSource = "default"
)

// GenuineCategory labels the kind of genuine moment detected in a message.
type GenuineCategory string

const (
	GenuineDepth      GenuineCategory = "depth"
	GenuineBelonging  GenuineCategory = "belonging"
	GenuineProgress   GenuineCategory = "progress"
	GenuineLoneliness GenuineCategory = "loneliness"
	GenuineRest       GenuineCategory = "rest"
)

// KnownGenuineCategories is the closed set of valid genuine-moment categories.
var KnownGenuineCategories = map[GenuineCategory]bool{
	GenuineDepth:      true,
	GenuineBelonging:  true,
	GenuineProgress:   true,
	GenuineLoneliness: true,
	GenuineRest:       true,
}

// KnownEmotions is the closed set of primary emotions the classifier may emit.
// Values outside this set are coerced to EmotionNeutral on decode.
var KnownEmotions = map[string]bool{
	"neutral":      true,
	"happy":        true,
	"sad":          true,
	"angry":        true,
	"anxious":      true,
	"excited":      true,
	"grateful":     true,
	"apologetic":   true,
	"amused":       true,
	"affectionate": true,
	"lonely":       true,
	"dismissive":   true,
	"frustrated":   true,
	"hopeful":      true,
}

// EmotionNeutral is the default primary emotion.
const EmotionNeutral = "neutral"

// OpenLoopType labels the kind of future-relevant item detected in a message.
type OpenLoopType string

const (
	OpenLoopEvent      OpenLoopType = "event"
	OpenLoopCommitment OpenLoopType = "commitment"
	OpenLoopDecision   OpenLoopType = "decision"
	OpenLoopConcern    OpenLoopType = "concern"
)

// KnownOpenLoopTypes is the closed set of valid open-loop types.
var KnownOpenLoopTypes = map[OpenLoopType]bool{
	OpenLoopEvent:      true,
	OpenLoopCommitment: true,
	OpenLoopDecision:   true,
	OpenLoopConcern:    true,
}

// GenuineMoment captures whether a message is a moment of real connection.
type GenuineMoment struct {
	IsGenuine  bool            `json:"is_genuine"`
	Category   GenuineCategory `json:"category,omitempty"`
	Confidence float64         `json:"confidence"` // [0,1]
}

// Tone captures the emotional coloring of a message.
type Tone struct {
	Sentiment      float64 `json:"sentiment"` // [-1,1]
	PrimaryEmotion string  `json:"primary_emotion"`
	Intensity      float64 `json:"intensity"` // [0,1]
	IsSarcastic    bool    `json:"is_sarcastic"`
}

// Topics captures what the message is about.
type Topics struct {
	List     []string          `json:"list,omitempty"`
	Primary  string            `json:"primary,omitempty"`
	Emotions map[string]string `json:"emotions,omitempty"` // topic -> emotion
}

// OpenLoop captures a detected follow-up item.
type OpenLoop struct {
	HasFollowUp       bool         `json:"has_follow_up"`
	Type              OpenLoopType `json:"type,omitempty"`
	Timeframe         string       `json:"timeframe,omitempty"`
	SuggestedFollowUp string       `json:"suggested_follow_up,omitempty"`
	Salience          float64      `json:"salience"` // [0,1]
}

// RelationshipSignal captures relationship-relevant flags for the state machine.
type RelationshipSignal struct {
	MilestoneCandidate Milestone `json:"milestone_candidate,omitempty"`
	IsVulnerable       bool      `json:"is_vulnerable"`
	IsHostile          bool      `json:"is_hostile"`
	IsInappropriate    bool      `json:"is_inappropriate"`
}

// Contradiction captures whether the message contradicts something the user
// said earlier in the context window.
type Contradiction struct {
	IsContradicting bool   `json:"is_contradicting"`
	Subject         string `json:"subject,omitempty"`
}

// MessageIntent is the structured judgment about a single message. It is
// produced once per message and consumed by the relationship state machine
// and the reply-generation layer. It is never persisted verbatim; only its
// derived effects are.
type MessageIntent struct {
	GenuineMoment      GenuineMoment      `json:"genuine_moment"`
	Tone               Tone               `json:"tone"`
	Topics             Topics             `json:"topics"`
	OpenLoop           OpenLoop           `json:"open_loop"`
	RelationshipSignal RelationshipSignal `json:"relationship_signal"`
	Contradiction      Contradiction      `json:"contradiction"`
	Source             IntentSource       `json:"source"`
}

// NeutralIntent returns the fixed default intent used for bypassed messages
// and as the baseline for field coercion.
func NeutralIntent() *MessageIntent {
	return &MessageIntent{
		Tone: Tone{
			Sentiment:      0,
			PrimaryEmotion: EmotionNeutral,
			Intensity:      0,
		},
		Source: SourceDefault,
	}
}

// Normalize clamps all numeric fields to their documented ranges and coerces
// enumerated fields outside their allowed sets to safe defaults. A single bad
// field never invalidates the rest of the judgment.
func (m *MessageIntent) Normalize() {
	m.GenuineMoment.Confidence = ClampFloat(m.GenuineMoment.Confidence, 0, 1)
	if m.GenuineMoment.Category != "" && !KnownGenuineCategories[m.GenuineMoment.Category] {
		m.GenuineMoment.Category = ""
	}

	m.Tone.Sentiment = ClampFloat(m.Tone.Sentiment, -1, 1)
	m.Tone.Intensity = ClampFloat(m.Tone.Intensity, 0, 1)
	if m.Tone.PrimaryEmotion == "" || !KnownEmotions[strings.ToLower(m.Tone.PrimaryEmotion)] {
		m.Tone.PrimaryEmotion = EmotionNeutral
	} else {
		m.Tone.PrimaryEmotion = strings.ToLower(m.Tone.PrimaryEmotion)
	}

	m.OpenLoop.Salience = ClampFloat(m.OpenLoop.Salience, 0, 1)
	if m.OpenLoop.Type != "" && !KnownOpenLoopTypes[m.OpenLoop.Type] {
		m.OpenLoop.Type = ""
	}
	if !m.OpenLoop.HasFollowUp {
		m.OpenLoop.Type = ""
		m.OpenLoop.Timeframe = ""
		m.OpenLoop.SuggestedFollowUp = ""
	}

	if m.RelationshipSignal.MilestoneCandidate != "" &&
		!KnownMilestones[m.RelationshipSignal.MilestoneCandidate] {
		m.RelationshipSignal.MilestoneCandidate = ""
	}
}

// Clone returns a deep copy of the intent.
func (m *MessageIntent) Clone() *MessageIntent {
	if m == nil {
		return nil
	}
	out := *m
	if m.Topics.List != nil {
		out.Topics.List = append([]string(nil), m.Topics.List...)
	}
	if m.Topics.Emotions != nil {
		out.Topics.Emotions = make(map[string]string, len(m.Topics.Emotions))
		for k, v := range m.Topics.Emotions {
			out.Topics.Emotions[k] = v
		}
	}
	return &out
}

// MessageMetadata carries zero-cost facts derived from the raw message text.
// It feeds the state machine's effort adjustments without another model call.
type MessageMetadata struct {
	WordCount   int       `json:"word_count"`
	RuneCount   int       `json:"rune_count"`
	HasQuestion bool      `json:"has_question"`
	SentAt      time.Time `json:"sent_at"`
}

// DeriveMessageMetadata computes MessageMetadata from raw text.
func DeriveMessageMetadata(text string, sentAt time.Time) MessageMetadata {
	return MessageMetadata{
		WordCount:   len(strings.Fields(text)),
		RuneCount:   utf8.RuneCountInString(text),
		HasQuestion: strings.ContainsAny(text, "?？"),
		SentAt:      sentAt,
	}
}

// ClampFloat clamps v to [lo, hi].
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
