package domain

import "time"

// Merchant is an end-user business identified by its WhatsApp phone number.
// The phone is the identity key; ID is a surrogate assigned at first contact.
type Merchant struct {
	ID        int64
	Phone     string
	CreatedAt time.Time
}
