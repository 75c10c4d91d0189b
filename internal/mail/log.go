package mail

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var _ Sender = LogSender{}

// LogSender logs messages instead of sending them. It is used when no email
// backend is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	zctx.From(ctx).Info("Email not sent, no backend configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
