package classifier

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/haasonsaas/attune/pkg/models"
)

// HeuristicClassifier is the deterministic fallback used when a gateway
// fails. It scores weighted keyword and phrase patterns per aspect. It is
// total (never fails), side-effect-free, and intentionally lower recall than
// the gateway; that trade-off is accepted.
type HeuristicClassifier struct {
	emotionPatterns map[string][]weightedKeyword
	topicPatterns   map[string][]string

	vulnerabilityRe *regexp.Regexp
	apologyRe       *regexp.Regexp
	complimentRe    *regexp.Regexp
	hostileRe       *regexp.Regexp
	futureRe        *regexp.Regexp
	jokeRe          *regexp.Regexp
}

type weightedKeyword struct {
	keyword string
	weight  float64
}

// NewHeuristicClassifier creates the fallback with its built-in patterns.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{
		emotionPatterns: map[string][]weightedKeyword{
			"angry": {
				{"hate", 0.5}, {"furious", 0.5}, {"wtf", 0.5}, {"terrible", 0.4},
				{"stupid", 0.5}, {"useless", 0.4}, {"worst", 0.4}, {"shut up", 0.5},
			},
			"anxious": {
				{"worried", 0.5}, {"nervous", 0.5}, {"scared", 0.4}, {"stressed", 0.5},
				{"anxious", 0.6}, {"overwhelmed", 0.5}, {"can't sleep", 0.4},
			},
			"happy": {
				{"great", 0.3}, {"awesome", 0.4}, {"love it", 0.4}, {"so good", 0.3},
				{"wonderful", 0.4}, {"amazing", 0.4}, {"best day", 0.5},
			},
			"sad": {
				{"sad", 0.5}, {"miss", 0.3}, {"lonely", 0.5}, {"crying", 0.5},
				{"depressed", 0.6}, {"disappointed", 0.4}, {"sigh", 0.4},
			},
			"grateful": {
				{"thank", 0.5}, {"appreciate", 0.5}, {"grateful", 0.6}, {"means a lot", 0.5},
			},
			"amused": {
				{"lol", 0.4}, {"haha", 0.4}, {"lmao", 0.4}, {"hilarious", 0.5}, {"😂", 0.4},
			},
			"apologetic": {
				{"sorry", 0.5}, {"my bad", 0.5}, {"apologize", 0.6}, {"forgive me", 0.6},
				{"i was wrong", 0.5}, {"shouldn't have", 0.4},
			},
			"excited": {
				{"can't wait", 0.5}, {"so excited", 0.6}, {"finally", 0.3}, {"yes!!", 0.4},
			},
		},
		topicPatterns: map[string][]string{
			"work":          {"work", "job", "boss", "meeting", "deadline", "coworker", "office", "interview"},
			"family":        {"mom", "dad", "sister", "brother", "family", "parents", "grandma", "grandpa"},
			"health":        {"doctor", "sick", "tired", "sleep", "gym", "therapy", "headache", "appointment"},
			"relationships": {"friend", "girlfriend", "boyfriend", "partner", "date", "breakup", "wedding"},
			"school":        {"class", "exam", "homework", "professor", "semester", "studying", "grade"},
			"money":         {"money", "rent", "bills", "salary", "broke", "savings", "paycheck"},
			"hobbies":       {"game", "movie", "book", "music", "cooking", "hiking", "painting", "show"},
		},
		vulnerabilityRe: regexp.MustCompile(`(?i)\b(i('ve| have) never told|i'm (really )?(scared|afraid|struggling)|i feel like a failure|to be honest|can i tell you something|i don't usually talk about)`),
		apologyRe:       regexp.MustCompile(`(?i)\b(i('m| am) (so |really )?sorry|my bad|i apologize|forgive me|i was wrong|i shouldn't have)\b`),
		complimentRe:    regexp.MustCompile(`(?i)\b(you('re| are) (the best|amazing|wonderful|so (kind|sweet|helpful))|i (love|like) (talking to|chatting with) you|you always (get|understand) me)\b`),
		hostileRe:       regexp.MustCompile(`(?i)\b(you('re| are) (stupid|useless|worthless|pathetic|an idiot)|i hate you|shut up|screw you|leave me alone)\b`),
		futureRe:        regexp.MustCompile(`(?i)\b(tomorrow|tonight|next (week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday)|this (weekend|friday)|interview|appointment|exam|surgery|wedding|flight)\b`),
		jokeRe:          regexp.MustCompile(`(?i)(\blol\b|\blmao\b|haha|😂|🤣|\bjk\b|just kidding)`),
	}
}

// Classify is total: it always returns a valid intent and a nil error.
func (h *HeuristicClassifier) Classify(_ context.Context, message string, _ []models.ContextTurn) (*models.MessageIntent, error) {
	lower := strings.ToLower(message)

	intent := models.NeutralIntent()
	intent.Source = models.SourceFallback

	emotion, confidence := h.scoreEmotion(lower)
	sentiment := h.scoreSentiment(lower)
	intensity := h.scoreIntensity(message, confidence)

	intent.Tone = models.Tone{
		Sentiment:      sentiment,
		PrimaryEmotion: emotion,
		Intensity:      intensity,
	}

	intent.Topics = h.scoreTopics(lower, emotion)

	vulnerable := h.vulnerabilityRe.MatchString(message)
	hostile := h.hostileRe.MatchString(message)
	joke := h.jokeRe.MatchString(message)

	intent.RelationshipSignal = models.RelationshipSignal{
		IsVulnerable: vulnerable,
		IsHostile:    hostile,
	}
	switch {
	case vulnerable:
		intent.RelationshipSignal.MilestoneCandidate = models.MilestoneFirstVulnerability
	case joke && !hostile:
		intent.RelationshipSignal.MilestoneCandidate = models.MilestoneFirstJoke
	}

	if h.futureRe.MatchString(message) {
		match := h.futureRe.FindString(lower)
		intent.OpenLoop = models.OpenLoop{
			HasFollowUp: true,
			Type:        models.OpenLoopEvent,
			Timeframe:   match,
			Salience:    0.4,
		}
	}

	if vulnerable && sentiment < 0 {
		intent.GenuineMoment = models.GenuineMoment{
			IsGenuine:  true,
			Category:   models.GenuineDepth,
			Confidence: 0.4,
		}
	}

	intent.Normalize()
	return intent, nil
}

// emotionOrder fixes the scan order so tie-breaks are deterministic.
var emotionOrder = []string{"angry", "anxious", "sad", "apologetic", "grateful", "amused", "excited", "happy"}

// scoreEmotion picks the top-scoring emotion, or neutral below threshold.
func (h *HeuristicClassifier) scoreEmotion(lower string) (string, float64) {
	// Fixed phrase patterns outrank keyword scores.
	if h.hostileRe.MatchString(lower) {
		return "angry", 0.8
	}
	if h.apologyRe.MatchString(lower) {
		return "apologetic", 0.7
	}
	if h.complimentRe.MatchString(lower) {
		return "affectionate", 0.6
	}

	top := models.EmotionNeutral
	topScore := 0.0
	for _, emotion := range emotionOrder {
		score := 0.0
		for _, kw := range h.emotionPatterns[emotion] {
			if strings.Contains(lower, kw.keyword) {
				score += kw.weight
			}
		}
		if score > topScore {
			topScore = score
			top = emotion
		}
	}
	if topScore < 0.3 {
		return models.EmotionNeutral, 0
	}
	if topScore > 1 {
		topScore = 1
	}
	return top, topScore
}

var positiveWords = []string{"great", "good", "love", "awesome", "thank", "happy", "nice", "wonderful", "amazing", "excited", "glad", "haha", "lol"}

var negativeWords = []string{"hate", "terrible", "awful", "sad", "angry", "stupid", "worst", "annoying", "tired", "scared", "worried", "lonely", "useless", "crying"}

// scoreSentiment computes polarity from word lists, clamped to [-1,1].
func (h *HeuristicClassifier) scoreSentiment(lower string) float64 {
	score := 0.0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.25
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.3
		}
	}
	// Hostility dominates whatever else the message contains.
	if h.hostileRe.MatchString(lower) {
		score -= 0.6
	}
	if h.complimentRe.MatchString(lower) {
		score += 0.4
	}
	return models.ClampFloat(score, -1, 1)
}

// scoreIntensity derives intensity from emotion confidence plus emphasis
// cues: exclamation marks and shouting caps.
func (h *HeuristicClassifier) scoreIntensity(message string, emotionConfidence float64) float64 {
	intensity := emotionConfidence * 0.7

	exclaims := strings.Count(message, "!")
	if exclaims > 0 {
		intensity += 0.1 * float64(exclaims)
	}

	letters, uppers := 0, 0
	for _, r := range message {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters >= 8 && float64(uppers)/float64(letters) > 0.6 {
		intensity += 0.2
	}

	return models.ClampFloat(intensity, 0, 1)
}

// topicOrder fixes the category scan order so the fallback stays
// deterministic; the first matched category becomes primary.
var topicOrder = []string{"work", "family", "health", "relationships", "school", "money", "hobbies"}

// scoreTopics collects matched topic categories; the first match wins
// primary. Per-topic emotion reuses the message-level emotion, which is the
// best a keyword pass can do.
func (h *HeuristicClassifier) scoreTopics(lower, emotion string) models.Topics {
	var matched []string
	for _, topic := range topicOrder {
		for _, kw := range h.topicPatterns[topic] {
			if containsWord(lower, kw) {
				matched = append(matched, topic)
				break
			}
		}
	}
	if len(matched) == 0 {
		return models.Topics{}
	}

	topics := models.Topics{
		List:     matched,
		Primary:  matched[0],
		Emotions: make(map[string]string, len(matched)),
	}
	if emotion != models.EmotionNeutral {
		for _, topic := range matched {
			topics.Emotions[topic] = emotion
		}
	}
	return topics
}

// containsWord matches kw at word boundaries so "mom" does not match
// "moment".
func containsWord(s, kw string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordRune(rune(s[start-1]))
		afterOK := end == len(s) || !isWordRune(rune(s[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
