package billing

import "errors"

// Error taxonomy for the billing core. Controllers map these to HTTP statuses;
// the processor maps them to ledger outcomes.
var (
	// ErrUnknownPlan means the requested plan has no configured Stripe price.
	ErrUnknownPlan = errors.New("unknown subscription plan")

	// ErrUnknownPrice means a Stripe price id has no catalog entry.
	ErrUnknownPrice = errors.New("unknown stripe price")

	// ErrAccountNotFound means the account id matches no billing record or
	// no registered user.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNoBillingIdentity means the account never checked out, so no Stripe
	// customer exists to open a portal session for.
	ErrNoBillingIdentity = errors.New("account has no billing identity")

	// ErrGatewayUnavailable wraps Stripe transport and server errors.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrBadSignature means the webhook payload failed signature
	// verification. Logged as a security event, never retried by us.
	ErrBadSignature = errors.New("invalid webhook signature")

	// ErrMalformedEvent means an authenticated event of a known type is
	// missing fields its handler requires.
	ErrMalformedEvent = errors.New("malformed webhook event")
)
