package domain

import "strings"

// senderPrefix is how Twilio tags WhatsApp identities, e.g. "whatsapp:+911234567890".
const senderPrefix = "whatsapp:"

// InboundEvent is the validated, typed form of a Twilio webhook payload.
// It is built once at the HTTP boundary and passed by value from there on.
type InboundEvent struct {
	Phone            string
	Body             string
	MediaURL         string
	MediaContentType string
	MessageSID       string
	NumMedia         int
}

// ParseSender extracts the bare phone from a platform-prefixed identity.
// Returns false for anything that is not a WhatsApp sender.
func ParseSender(from string) (string, bool) {
	from = strings.TrimSpace(from)
	if !strings.HasPrefix(from, senderPrefix) {
		return "", false
	}
	phone := strings.TrimPrefix(from, senderPrefix)
	if phone == "" {
		return "", false
	}
	return phone, true
}

// HasAudio reports whether the event carries a fetchable voice attachment.
func (e InboundEvent) HasAudio() bool {
	return e.MediaURL != "" && strings.HasPrefix(e.MediaContentType, "audio/")
}
