package models

import "time"

// Terminal outcomes recorded in the processed-event ledger.
const (
	WebhookOutcomeApplied      = "applied"
	WebhookOutcomeIgnored      = "ignored"
	WebhookOutcomeUnresolvable = "unresolvable"
	WebhookOutcomeFailed       = "failed"
)

// BillingWebhookEvent is the processed-event ledger for Stripe webhooks. One
// row per event id, inserted with an insert-if-absent so at-least-once
// redelivery and concurrent deliveries of the same id stay idempotent. Rows
// are never deleted; retention is an operational concern.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StripeEventID   string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_webhook_events_event" json:"stripe_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	Outcome         string     `gorm:"type:varchar(32);not null;default:'';index" json:"outcome"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ReceivedAt      time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Terminal reports whether the ledger row already carries a final outcome.
// A row without one belongs to a delivery that died mid-processing; the
// gateway's redelivery is the retry mechanism for those.
func (e *BillingWebhookEvent) Terminal() bool {
	return e.Outcome != ""
}
