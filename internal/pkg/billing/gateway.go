package billing

import (
	"context"
	"time"
)

// Gateway abstracts the Stripe operations the billing core depends on.
type Gateway interface {
	// CreateCustomer creates a gateway customer carrying the account id as
	// correlating metadata and returns its id.
	CreateCustomer(ctx context.Context, email, accountID string) (string, error)

	// CreateCheckoutSession requests a subscription-mode hosted checkout
	// session and returns its redirect URL.
	CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (string, error)

	// CreatePortalSession requests a hosted self-service portal session for
	// an existing customer and returns its redirect URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// GetSubscription fetches the current state of a subscription. Needed
	// after checkout completion, which does not carry final subscription
	// status itself.
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
}

// CheckoutSessionParams carries everything a hosted checkout session needs.
// AccountID and Plan are embedded as metadata on both the session and the
// subscription it creates; that round-trip is how the webhook processor later
// attributes the subscription to an internal account.
type CheckoutSessionParams struct {
	CustomerID string
	PriceID    string
	AccountID  string
	Plan       string
	SuccessURL string
	CancelURL  string
}

// SubscriptionState is the slice of a gateway subscription the processor
// acts on.
type SubscriptionState struct {
	ID               string
	CustomerID       string
	Status           string
	PriceID          string
	CurrentPeriodEnd *time.Time
}
