package classifier

import (
	"strings"

	"github.com/haasonsaas/attune/pkg/models"
)

const (
	// maxMessageChars bounds the message body submitted for classification.
	maxMessageChars = 2000

	// maxContextTurns is the rolling window size; older turns are dropped.
	maxContextTurns = 5

	// maxTurnChars bounds each context turn.
	maxTurnChars = 400
)

// classificationSystemPrompt asks for every aspect of the judgment in one
// response so classification stays at one model call per message. The JSON
// shape must stay in sync with the wire types in decode.go.
const classificationSystemPrompt = `You classify a single chat message from a user to their companion agent. Respond with ONLY a JSON object, no prose, matching exactly:
{
  "genuine_moment": {"is_genuine": bool, "category": "depth|belonging|progress|loneliness|rest", "confidence": 0..1},
  "tone": {"sentiment": -1..1, "primary_emotion": "neutral|happy|sad|angry|anxious|excited|grateful|apologetic|amused|affectionate|lonely|dismissive|frustrated|hopeful", "intensity": 0..1, "is_sarcastic": bool},
  "topics": {"list": [string], "primary": string, "emotions": {topic: emotion}},
  "open_loop": {"has_follow_up": bool, "type": "event|commitment|decision|concern", "timeframe": string, "suggested_follow_up": string, "salience": 0..1},
  "relationship_signal": {"milestone_candidate": "first_vulnerability|first_joke|first_support|first_deep_disclosure|", "is_vulnerable": bool, "is_hostile": bool, "is_inappropriate": bool},
  "contradiction": {"is_contradicting": bool, "subject": string}
}
Sentiment is how the message feels toward the agent and the conversation, not the topic. Judge sarcasm and contradiction against the provided context turns. Omit or empty any field you cannot judge.`

// buildUserPayload renders the message plus up to the last maxContextTurns
// context turns into the single user message sent to the endpoint.
func buildUserPayload(message string, turns []models.ContextTurn) string {
	var sb strings.Builder

	if len(turns) > 0 {
		if len(turns) > maxContextTurns {
			turns = turns[len(turns)-maxContextTurns:]
		}
		sb.WriteString("Recent conversation:\n")
		for _, turn := range turns {
			text := truncate(turn.Text, maxTurnChars)
			sb.WriteString(string(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	sb.WriteString("Message to classify:\n")
	sb.WriteString(truncate(message, maxMessageChars))
	return sb.String()
}

// truncate cuts s to at most n runes, never splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
