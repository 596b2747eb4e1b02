package notify

import (
	"context"
	"log/slog"
)

// LogNotifier logs messages instead of sending them (debug mode).
// The body is logged verbatim, so it must never be enabled in production.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to log (slog.Default when nil).
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// Notify logs msg at info level.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	n.log.InfoContext(ctx, "notify.debug",
		"to", msg.To,
		"subject", msg.Subject,
		"message", msg.Body,
	)
	return nil
}
