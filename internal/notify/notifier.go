package notify

import (
	"context"
	"log"
)

// Replies sent back to merchants on the WhatsApp channel. Acks are sent
// before any blocking work; the retry prompt replaces error responses,
// since the platform only ever sees an empty success.
const (
	AckReceived = "\U0001F3A4 Audio mil gaya.\nYaad rakh raha hoon…"
	RetryPrompt = "⚠️ Audio receive karne mein problem aayi.\nEk baar phir bhejiye."
)

// Notifier sends a best-effort WhatsApp message to a merchant. Callers log
// and swallow failures; delivery never gates control flow.
type Notifier interface {
	Send(ctx context.Context, phone, text string) error
}

// LogNotifier is the fallback when Twilio credentials are not configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, phone, text string) error {
	if n.logger != nil {
		n.logger.Printf("notify (log only) phone=%s text=%q", phone, text)
	}
	return nil
}
