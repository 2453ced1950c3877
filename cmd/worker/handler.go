package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/research-search/internal/core/domain"
)

type eventObserver interface {
	StartEvent()
	FinishEvent(service, kind string, duration time.Duration, err error)
	ObserveEventLag(service string, lag time.Duration)
	ObserveLabel(service, scope, label string)
}

// newEventHandler turns feedback events into judgement counters.
func newEventHandler(m eventObserver, now func() time.Time) func(context.Context, domain.FeedbackEvent) error {
	return func(ctx context.Context, event domain.FeedbackEvent) error {
		start := now()
		m.StartEvent()
		if !event.OccurredAt.IsZero() {
			m.ObserveEventLag(serviceName, start.Sub(event.OccurredAt))
		}

		if event.GlobalChanged {
			m.ObserveLabel(serviceName, "global", labelName(event.GlobalFeedback))
		}
		if event.ItemID != nil {
			m.ObserveLabel(serviceName, "item", labelName(event.ItemLabel))
		}

		slog.DebugContext(ctx, "feedback_event_handled",
			"feedback_id", event.FeedbackID,
			"kind", string(event.Kind),
			"user_id", event.UserID,
		)
		m.FinishEvent(serviceName, string(event.Kind), now().Sub(start), nil)
		return nil
	}
}

func labelName(label *domain.Label) string {
	if label == nil {
		return "cleared"
	}
	return label.String()
}
