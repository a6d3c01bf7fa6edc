package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/haasonsaas/attune/internal/storage"
	"github.com/haasonsaas/attune/pkg/models"
)

// updatePatterns folds one classified message into the user's rolling
// behavior counters.
func (o *Orchestrator) updatePatterns(ctx context.Context, userID string, intent *models.MessageIntent, meta models.MessageMetadata) error {
	pattern, err := o.stores.Patterns.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		pattern = models.NewBehaviorPattern(userID)
	} else if err != nil {
		return fmt.Errorf("load pattern: %w", err)
	}

	recordPattern(pattern, intent, meta)

	return o.persist(ctx, "pattern", func() error {
		return o.stores.Patterns.Put(ctx, pattern)
	})
}

// recordPattern mutates the pattern record in place. Counters only grow.
func recordPattern(pattern *models.BehaviorPattern, intent *models.MessageIntent, meta models.MessageMetadata) {
	bucket := models.ClassifyTimeOfDay(meta.SentAt.Hour())
	pattern.MessagesByTimeOfDay[bucket]++
	pattern.EmotionCounts[intent.Tone.PrimaryEmotion]++
	if intent.Topics.Primary != "" {
		pattern.TopicCounts[intent.Topics.Primary]++
	}
	if intent.RelationshipSignal.IsHostile {
		pattern.HostileCount++
	}
	if intent.RelationshipSignal.IsVulnerable {
		pattern.VulnerableCount++
	}
	if intent.Tone.IsSarcastic {
		pattern.SarcasticCount++
	}
	pattern.TotalWords += meta.WordCount
	pattern.TotalMessages++
	pattern.UpdatedAt = meta.SentAt
}
