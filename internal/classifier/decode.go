package classifier

import (
	"encoding/json"
	"strings"

	"github.com/haasonsaas/attune/pkg/models"
)

// Wire types mirror the JSON shape requested in classificationSystemPrompt.
// They decode into loosely-typed fields and are coerced into the strict
// model types afterward, so one bad field never invalidates the whole
// judgment. Only a response that fails to parse as the expected object is a
// schema violation.
type wireIntent struct {
	GenuineMoment *wireGenuine       `json:"genuine_moment"`
	Tone          *wireTone          `json:"tone"`
	Topics        *wireTopics        `json:"topics"`
	OpenLoop      *wireOpenLoop      `json:"open_loop"`
	Signal        *wireSignal        `json:"relationship_signal"`
	Contradiction *wireContradiction `json:"contradiction"`
}

type wireGenuine struct {
	IsGenuine  bool     `json:"is_genuine"`
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
}

type wireTone struct {
	Sentiment      *float64 `json:"sentiment"`
	PrimaryEmotion string   `json:"primary_emotion"`
	Intensity      *float64 `json:"intensity"`
	IsSarcastic    bool     `json:"is_sarcastic"`
}

type wireTopics struct {
	List     []string          `json:"list"`
	Primary  string            `json:"primary"`
	Emotions map[string]string `json:"emotions"`
}

type wireOpenLoop struct {
	HasFollowUp       bool     `json:"has_follow_up"`
	Type              string   `json:"type"`
	Timeframe         string   `json:"timeframe"`
	SuggestedFollowUp string   `json:"suggested_follow_up"`
	Salience          *float64 `json:"salience"`
}

type wireSignal struct {
	MilestoneCandidate string `json:"milestone_candidate"`
	IsVulnerable       bool   `json:"is_vulnerable"`
	IsHostile          bool   `json:"is_hostile"`
	IsInappropriate    bool   `json:"is_inappropriate"`
}

type wireContradiction struct {
	IsContradicting bool   `json:"is_contradicting"`
	Subject         string `json:"subject"`
}

// DecodeIntent parses a raw endpoint response into a normalized
// MessageIntent. It returns a KindMalformed GatewayError when the response is
// not the expected JSON object; field-level problems are coerced to defaults
// instead.
func DecodeIntent(provider, raw string) (*models.MessageIntent, error) {
	payload := stripFences(raw)
	if strings.TrimSpace(payload) == "" {
		return nil, malformed(provider, "empty response body", nil)
	}

	var wire wireIntent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, malformed(provider, "response is not valid JSON", err)
	}
	if wire.Tone == nil && wire.GenuineMoment == nil && wire.Topics == nil &&
		wire.OpenLoop == nil && wire.Signal == nil && wire.Contradiction == nil {
		return nil, malformed(provider, "response contains no recognized fields", nil)
	}

	intent := models.NeutralIntent()
	intent.Source = models.SourceGateway

	if wire.GenuineMoment != nil {
		intent.GenuineMoment = models.GenuineMoment{
			IsGenuine:  wire.GenuineMoment.IsGenuine,
			Category:   models.GenuineCategory(strings.ToLower(wire.GenuineMoment.Category)),
			Confidence: deref(wire.GenuineMoment.Confidence),
		}
	}
	if wire.Tone != nil {
		intent.Tone = models.Tone{
			Sentiment:      deref(wire.Tone.Sentiment),
			PrimaryEmotion: wire.Tone.PrimaryEmotion,
			Intensity:      deref(wire.Tone.Intensity),
			IsSarcastic:    wire.Tone.IsSarcastic,
		}
	}
	if wire.Topics != nil {
		intent.Topics = models.Topics{
			List:     wire.Topics.List,
			Primary:  wire.Topics.Primary,
			Emotions: wire.Topics.Emotions,
		}
	}
	if wire.OpenLoop != nil {
		intent.OpenLoop = models.OpenLoop{
			HasFollowUp:       wire.OpenLoop.HasFollowUp,
			Type:              models.OpenLoopType(strings.ToLower(wire.OpenLoop.Type)),
			Timeframe:         wire.OpenLoop.Timeframe,
			SuggestedFollowUp: wire.OpenLoop.SuggestedFollowUp,
			Salience:          deref(wire.OpenLoop.Salience),
		}
	}
	if wire.Signal != nil {
		intent.RelationshipSignal = models.RelationshipSignal{
			MilestoneCandidate: models.Milestone(strings.ToLower(wire.Signal.MilestoneCandidate)),
			IsVulnerable:       wire.Signal.IsVulnerable,
			IsHostile:          wire.Signal.IsHostile,
			IsInappropriate:    wire.Signal.IsInappropriate,
		}
	}
	if wire.Contradiction != nil {
		intent.Contradiction = models.Contradiction{
			IsContradicting: wire.Contradiction.IsContradicting,
			Subject:         wire.Contradiction.Subject,
		}
	}

	intent.Normalize()
	return intent, nil
}

// stripFences removes a surrounding markdown code fence, which some models
// add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
