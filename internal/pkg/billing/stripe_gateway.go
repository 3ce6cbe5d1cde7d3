package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Outbound Stripe calls get a bounded timeout and a single retry on
// transient network failure. Webhook processing never retries internally;
// Stripe's own redelivery is the retry mechanism there.
const gatewayTimeout = 10 * time.Second

// StripeGateway implements Gateway on the official Stripe SDK.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: gatewayTimeout},
		MaxNetworkRetries: stripe.Int64(1),
	})
	return &StripeGateway{api: client.New(secretKey, &stripe.Backends{API: backend})}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata(metaAccountID, accountID)

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", wrapGatewayErr("create customer", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (string, error) {
	metadata := map[string]string{
		metaAccountID: p.AccountID,
		metaPlan:      p.Plan,
	}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		// The same metadata goes on the session and on the subscription it
		// creates, so the first webhook event can be attributed to an
		// account before any other linkage exists.
		Metadata: metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", wrapGatewayErr("create checkout session", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", wrapGatewayErr("create portal session", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapGatewayErr("get subscription", err)
	}
	return subscriptionStateFrom(sub), nil
}

func wrapGatewayErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %s: %s", ErrGatewayUnavailable, op, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
}
