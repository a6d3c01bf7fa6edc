package models

import "time"

// TimeOfDay buckets the local hour a message arrived.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeLateNight TimeOfDay = "late_night"
)

// ClassifyTimeOfDay buckets an hour (0-23) into a TimeOfDay.
func ClassifyTimeOfDay(hour int) TimeOfDay {
	switch {
	case hour >= 6 && hour < 12:
		return TimeMorning
	case hour >= 12 && hour < 18:
		return TimeAfternoon
	case hour >= 18 && hour < 23:
		return TimeEvening
	default:
		return TimeLateNight
	}
}

// BehaviorPattern holds cross-session rolling counters for one user. It is
// append-only in spirit: counters only grow, and the record is replaced as a
// whole on each update.
type BehaviorPattern struct {
	UserID string `json:"user_id"`

	// MessagesByTimeOfDay counts messages per local-hour bucket.
	MessagesByTimeOfDay map[TimeOfDay]int `json:"messages_by_time_of_day,omitempty"`

	// EmotionCounts counts classified primary emotions.
	EmotionCounts map[string]int `json:"emotion_counts,omitempty"`

	// TopicCounts counts primary topics.
	TopicCounts map[string]int `json:"topic_counts,omitempty"`

	HostileCount    int `json:"hostile_count"`
	VulnerableCount int `json:"vulnerable_count"`
	SarcasticCount  int `json:"sarcastic_count"`

	// TotalWords accumulates word counts so average message effort can be
	// derived without storing every message.
	TotalWords    int `json:"total_words"`
	TotalMessages int `json:"total_messages"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewBehaviorPattern returns an empty pattern record for a user.
func NewBehaviorPattern(userID string) *BehaviorPattern {
	return &BehaviorPattern{
		UserID:              userID,
		MessagesByTimeOfDay: make(map[TimeOfDay]int),
		EmotionCounts:       make(map[string]int),
		TopicCounts:         make(map[string]int),
	}
}

// Clone returns a deep copy of the pattern record.
func (p *BehaviorPattern) Clone() *BehaviorPattern {
	if p == nil {
		return nil
	}
	out := *p
	out.MessagesByTimeOfDay = make(map[TimeOfDay]int, len(p.MessagesByTimeOfDay))
	for k, v := range p.MessagesByTimeOfDay {
		out.MessagesByTimeOfDay[k] = v
	}
	out.EmotionCounts = make(map[string]int, len(p.EmotionCounts))
	for k, v := range p.EmotionCounts {
		out.EmotionCounts[k] = v
	}
	out.TopicCounts = make(map[string]int, len(p.TopicCounts))
	for k, v := range p.TopicCounts {
		out.TopicCounts[k] = v
	}
	return &out
}

// OpenLoopItem is a persisted follow-up item detected by classification.
type OpenLoopItem struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	Type              OpenLoopType `json:"type"`
	Timeframe         string       `json:"timeframe,omitempty"`
	SuggestedFollowUp string       `json:"suggested_follow_up,omitempty"`
	Salience          float64      `json:"salience"`
	DetectedAt        time.Time    `json:"detected_at"`
	ResolvedAt        *time.Time   `json:"resolved_at,omitempty"`
}

// Open reports whether the item is still awaiting follow-up.
func (i *OpenLoopItem) Open() bool {
	return i.ResolvedAt == nil
}
