package communication

import (
	"context"
	"errors"
	"log/slog"

	"axiapac.com/presence/presence/core"
)

// LogPublisher writes every event to the structured log. It is the
// publisher of last resort when no channel is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, topic string, payload any) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event", "topic", topic, "payload", payload)
	return nil
}

// Fanout delivers to every publisher and joins their failures.
type Fanout []core.Publisher

func (f Fanout) Publish(ctx context.Context, topic string, payload any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Only forwards the listed topics to p.
func Only(p core.Publisher, topics ...string) core.Publisher {
	allowed := make(map[string]bool, len(topics))
	for _, t := range topics {
		allowed[t] = true
	}
	return core.PublisherFunc(func(ctx context.Context, topic string, payload any) error {
		if !allowed[topic] {
			return nil
		}
		return p.Publish(ctx, topic, payload)
	})
}
