package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded messages. It is used
// when no notification channel is configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a log line.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// Send logs and discards a message.
func (n *NoOpNotifier) Send(_ context.Context, msg Message) error {
	n.log.Info("notification discarded (no channel configured)",
		"subject", msg.Subject,
		"count", len(msg.ListingIDs),
	)
	return nil
}

// Fanout delivers every message to each of its notifiers. A message counts
// as delivered only when every notifier accepted it.
type Fanout []Notifier

// Send implements Notifier.
func (f Fanout) Send(ctx context.Context, msg Message) error {
	for _, n := range f {
		if err := n.Send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
