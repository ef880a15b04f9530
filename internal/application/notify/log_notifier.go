package notify

import (
	"context"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
)

// LogNotifier writes operator messages to the log. It stands in for a chat
// channel when none is configured.
type LogNotifier struct {
	Logger logging.Logger
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.Logger.Info("operator notification", map[string]any{"text": text})
	return nil
}
