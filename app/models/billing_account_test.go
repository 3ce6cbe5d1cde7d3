package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasBillingIdentity(t *testing.T) {
	var acc BillingAccount
	assert.False(t, acc.HasBillingIdentity())

	empty := ""
	acc.StripeCustomerID = &empty
	assert.False(t, acc.HasBillingIdentity())

	cus := "cus_123"
	acc.StripeCustomerID = &cus
	assert.True(t, acc.HasBillingIdentity())
}

func TestWebhookEventTerminal(t *testing.T) {
	ev := BillingWebhookEvent{StripeEventID: "evt_1"}
	assert.False(t, ev.Terminal())

	now := time.Now()
	ev.Outcome = WebhookOutcomeApplied
	ev.ProcessedAt = &now
	assert.True(t, ev.Terminal())
}
