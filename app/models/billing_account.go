package models

import "time"

const (
	SubscriptionPlanFree    = "free"
	SubscriptionPlanPremium = "premium"
	SubscriptionPlanPro     = "pro"
)

const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// BillingAccount is the per-account subscription entitlement record. It is
// created with defaults by the registration flow and mutated only by the
// billing core: the identity resolver sets StripeCustomerID once, the webhook
// processor sets the plan/status/entitlement fields.
type BillingAccount struct {
	AccountID          string     `gorm:"type:char(36);primaryKey" json:"account_id"`
	StripeCustomerID   *string    `gorm:"type:varchar(191);default:null;uniqueIndex:ux_billing_accounts_customer" json:"stripe_customer_id,omitempty"`
	SubscriptionPlan   string     `gorm:"type:varchar(50);not null;default:'free'" json:"subscription_plan"`
	SubscriptionStatus string     `gorm:"type:varchar(32);not null;default:'none';index" json:"subscription_status"`
	EntitlementUntil   *time.Time `gorm:"type:timestamp;default:null" json:"entitlement_until,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasBillingIdentity reports whether a Stripe customer has been linked.
func (a *BillingAccount) HasBillingIdentity() bool {
	return a.StripeCustomerID != nil && *a.StripeCustomerID != ""
}
