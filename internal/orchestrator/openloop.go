package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/haasonsaas/attune/pkg/models"
)

// recordOpenLoop persists a follow-up item when the classifier detected one.
// Messages without a follow-up are a no-op for this branch.
func (o *Orchestrator) recordOpenLoop(ctx context.Context, userID string, intent *models.MessageIntent, meta models.MessageMetadata) error {
	if !intent.OpenLoop.HasFollowUp {
		return nil
	}
	item := &models.OpenLoopItem{
		ID:                uuid.NewString(),
		UserID:            userID,
		Type:              intent.OpenLoop.Type,
		Timeframe:         intent.OpenLoop.Timeframe,
		SuggestedFollowUp: intent.OpenLoop.SuggestedFollowUp,
		Salience:          intent.OpenLoop.Salience,
		DetectedAt:        meta.SentAt,
	}
	return o.persist(ctx, "open_loop", func() error {
		return o.stores.OpenLoops.Append(ctx, item)
	})
}
