package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/attune/pkg/models"
)

func TestHeuristicClassifier(t *testing.T) {
	h := NewHeuristicClassifier()
	ctx := context.Background()

	classify := func(t *testing.T, msg string) *models.MessageIntent {
		t.Helper()
		intent, err := h.Classify(ctx, msg, nil)
		if err != nil {
			t.Fatalf("fallback must be total, got error: %v", err)
		}
		if intent == nil {
			t.Fatal("fallback returned nil intent")
		}
		if intent.Source != models.SourceFallback {
			t.Fatalf("wrong source: %q", intent.Source)
		}
		return intent
	}

	t.Run("insult is hostile and negative", func(t *testing.T) {
		intent := classify(t, "you're stupid and useless")
		if !intent.RelationshipSignal.IsHostile {
			t.Error("expected hostile signal")
		}
		if intent.Tone.Sentiment >= 0 {
			t.Errorf("expected negative sentiment, got %f", intent.Tone.Sentiment)
		}
		if intent.Tone.PrimaryEmotion != "angry" {
			t.Errorf("expected angry, got %q", intent.Tone.PrimaryEmotion)
		}
	})

	t.Run("apology detected", func(t *testing.T) {
		intent := classify(t, "I'm really sorry about yesterday, I was wrong")
		if intent.Tone.PrimaryEmotion != "apologetic" {
			t.Errorf("expected apologetic, got %q", intent.Tone.PrimaryEmotion)
		}
		if intent.RelationshipSignal.IsHostile {
			t.Error("apology must not be hostile")
		}
	})

	t.Run("compliment is positive and affectionate", func(t *testing.T) {
		intent := classify(t, "you're the best, I love talking to you")
		if intent.Tone.Sentiment <= 0 {
			t.Errorf("expected positive sentiment, got %f", intent.Tone.Sentiment)
		}
		if intent.Tone.PrimaryEmotion != "affectionate" {
			t.Errorf("expected affectionate, got %q", intent.Tone.PrimaryEmotion)
		}
	})

	t.Run("vulnerability fires milestone candidate", func(t *testing.T) {
		intent := classify(t, "I've never told anyone this but I'm really struggling at work")
		if !intent.RelationshipSignal.IsVulnerable {
			t.Error("expected vulnerable signal")
		}
		if intent.RelationshipSignal.MilestoneCandidate != models.MilestoneFirstVulnerability {
			t.Errorf("expected first_vulnerability, got %q", intent.RelationshipSignal.MilestoneCandidate)
		}
	})

	t.Run("future marker opens a loop", func(t *testing.T) {
		intent := classify(t, "I have a job interview tomorrow")
		if !intent.OpenLoop.HasFollowUp {
			t.Error("expected open loop")
		}
		if intent.OpenLoop.Type != models.OpenLoopEvent {
			t.Errorf("expected event type, got %q", intent.OpenLoop.Type)
		}
	})

	t.Run("topic keywords detected", func(t *testing.T) {
		intent := classify(t, "my boss moved the deadline again")
		if intent.Topics.Primary != "work" {
			t.Errorf("expected work topic, got %+v", intent.Topics)
		}
	})

	t.Run("neutral message stays neutral", func(t *testing.T) {
		intent := classify(t, "the package arrived on tuesday")
		if intent.Tone.PrimaryEmotion != models.EmotionNeutral {
			t.Errorf("expected neutral, got %q", intent.Tone.PrimaryEmotion)
		}
		if intent.RelationshipSignal.IsHostile || intent.RelationshipSignal.IsVulnerable {
			t.Error("neutral message raised signals")
		}
	})

	t.Run("exclamations raise intensity", func(t *testing.T) {
		calm, _ := h.Classify(ctx, "this is great", nil)
		loud, _ := h.Classify(ctx, "this is great!!!", nil)
		if loud.Tone.Intensity <= calm.Tone.Intensity {
			t.Errorf("expected higher intensity: calm=%f loud=%f", calm.Tone.Intensity, loud.Tone.Intensity)
		}
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		msg := "thanks, I had a great day with my family lol"
		first := classify(t, msg)
		for i := 0; i < 10; i++ {
			again := classify(t, msg)
			if again.Tone.PrimaryEmotion != first.Tone.PrimaryEmotion ||
				again.Topics.Primary != first.Topics.Primary {
				t.Fatal("fallback output varies across identical calls")
			}
		}
	})

	t.Run("scores stay in bounds on extreme input", func(t *testing.T) {
		intent := classify(t, "I HATE HATE HATE this awful terrible worst stupid useless day!!!!!!!!")
		if intent.Tone.Sentiment < -1 || intent.Tone.Sentiment > 1 {
			t.Errorf("sentiment out of bounds: %f", intent.Tone.Sentiment)
		}
		if intent.Tone.Intensity < 0 || intent.Tone.Intensity > 1 {
			t.Errorf("intensity out of bounds: %f", intent.Tone.Intensity)
		}
	})
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		s, kw string
		want  bool
	}{
		{"my mom called", "mom", true},
		{"a special moment", "mom", false},
		{"work is fine", "work", true},
		{"networking event", "work", false},
		{"exam", "exam", true},
	}
	for _, tt := range tests {
		if got := containsWord(tt.s, tt.kw); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.s, tt.kw, got, tt.want)
		}
	}
}

func TestBuildUserPayload(t *testing.T) {
	t.Run("truncates context to last five turns", func(t *testing.T) {
		turns := make([]models.ContextTurn, 8)
		for i := range turns {
			turns[i] = models.ContextTurn{Role: models.RoleUser, Text: string(rune('a' + i))}
		}
		payload := buildUserPayload("hello", turns)
		if strings.Contains(payload, ": a\n") || strings.Contains(payload, ": b\n") || strings.Contains(payload, ": c\n") {
			t.Errorf("old turns not truncated:\n%s", payload)
		}
		if !strings.Contains(payload, ": h\n") {
			t.Errorf("latest turn missing:\n%s", payload)
		}
	})

	t.Run("truncates long message body", func(t *testing.T) {
		long := strings.Repeat("x", maxMessageChars+500)
		payload := buildUserPayload(long, nil)
		if strings.Count(payload, "x") != maxMessageChars {
			t.Errorf("message not truncated to %d chars", maxMessageChars)
		}
	})

	t.Run("omits context section without turns", func(t *testing.T) {
		payload := buildUserPayload("hello", nil)
		if strings.Contains(payload, "Recent conversation") {
			t.Error("unexpected context section")
		}
	})
}
