package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

// publishFeedbackEvent is best effort: the record is already stored.
func publishFeedbackEvent(ctx context.Context, publisher ports.FeedbackEventPublisher, event domain.FeedbackEvent) {
	if publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := publisher.PublishFeedbackEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "feedback_event_publish_failed",
			"feedback_id", event.FeedbackID,
			"kind", string(event.Kind),
			"error", err.Error(),
		)
	}
}

func userOrAnonymous(userID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return domain.AnonymousUser
}
