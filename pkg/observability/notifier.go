package observability

import (
	"context"
	"log/slog"
	"strings"
)

// LogNotifier is a ports.Notifier that writes SMS texts to the log instead
// of sending them. Phone numbers are masked.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the message.
func (n LogNotifier) Notify(ctx context.Context, phone, text string) error {
	n.Logger.InfoContext(ctx, "sms", "phone", maskPhone(phone), "text", text)
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
