package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/facturly/facturly/app/models"
	"github.com/facturly/facturly/internal/pkg/entitlements"
	stripe "github.com/stripe/stripe-go/v82"
)

// Metadata keys embedded on checkout sessions and their subscriptions.
const (
	metaAccountID = "account_id"
	metaPlan      = "plan"
)

const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
	eventInvoiceFailed       = "invoice.payment_failed"
)

// Event is the closed set of webhook shapes the processor dispatches on.
// Each variant carries exactly the fields its handler needs; a known event
// type missing required fields is rejected at the parse boundary instead of
// dispatching a partial object.
type Event interface{ isEvent() }

// CheckoutCompletedEvent resolves its account through the checkout metadata,
// because it may be the very first event of a subscription's life, before
// any stored linkage exists.
type CheckoutCompletedEvent struct {
	AccountID      string
	Plan           entitlements.Plan
	SubscriptionID string
	CustomerID     string
}

// SubscriptionUpdatedEvent carries the subscription's full current state;
// no extra fetch is needed.
type SubscriptionUpdatedEvent struct {
	CustomerID string
	Status     string
	PriceID    string
	PeriodEnd  *time.Time
}

type SubscriptionDeletedEvent struct {
	CustomerID string
}

type InvoicePaymentFailedEvent struct {
	CustomerID string
}

// IgnoredEvent covers every event type without a handler. It is still
// recorded in the ledger so redelivery does not reprocess it.
type IgnoredEvent struct {
	Type string
}

func (CheckoutCompletedEvent) isEvent()    {}
func (SubscriptionUpdatedEvent) isEvent()  {}
func (SubscriptionDeletedEvent) isEvent()  {}
func (InvoicePaymentFailedEvent) isEvent() {}
func (IgnoredEvent) isEvent()              {}

// parseEvent turns an authenticated Stripe event into one of the closed
// variants above. Errors wrap ErrMalformedEvent.
func parseEvent(ev stripe.Event) (Event, error) {
	switch string(ev.Type) {
	case eventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Type, err)
		}
		if sess.Mode != stripe.CheckoutSessionModeSubscription {
			// Payment-mode checkouts are none of our business.
			return IgnoredEvent{Type: string(ev.Type)}, nil
		}
		accountID := sess.Metadata[metaAccountID]
		plan := entitlements.Normalize(sess.Metadata[metaPlan])
		if accountID == "" || !entitlements.IsPaid(plan) {
			return nil, fmt.Errorf("%w: %s: missing or invalid checkout metadata", ErrMalformedEvent, ev.Type)
		}
		if sess.Subscription == nil || sess.Subscription.ID == "" {
			return nil, fmt.Errorf("%w: %s: no subscription on session", ErrMalformedEvent, ev.Type)
		}
		out := CheckoutCompletedEvent{
			AccountID:      accountID,
			Plan:           plan,
			SubscriptionID: sess.Subscription.ID,
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		return out, nil

	case eventSubscriptionUpdated:
		state, err := subscriptionFromEvent(ev)
		if err != nil {
			return nil, err
		}
		if state.Status == "" {
			return nil, fmt.Errorf("%w: %s: missing subscription status", ErrMalformedEvent, ev.Type)
		}
		return SubscriptionUpdatedEvent{
			CustomerID: state.CustomerID,
			Status:     state.Status,
			PriceID:    state.PriceID,
			PeriodEnd:  state.CurrentPeriodEnd,
		}, nil

	case eventSubscriptionDeleted:
		state, err := subscriptionFromEvent(ev)
		if err != nil {
			return nil, err
		}
		return SubscriptionDeletedEvent{CustomerID: state.CustomerID}, nil

	case eventInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Type, err)
		}
		if inv.Customer == nil || inv.Customer.ID == "" {
			return nil, fmt.Errorf("%w: %s: missing customer", ErrMalformedEvent, ev.Type)
		}
		return InvoicePaymentFailedEvent{CustomerID: inv.Customer.ID}, nil

	default:
		return IgnoredEvent{Type: string(ev.Type)}, nil
	}
}

func subscriptionFromEvent(ev stripe.Event) (*SubscriptionState, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Type, err)
	}
	state := subscriptionStateFrom(&sub)
	if state.CustomerID == "" {
		return nil, fmt.Errorf("%w: %s: missing customer", ErrMalformedEvent, ev.Type)
	}
	return state, nil
}

// subscriptionStateFrom flattens the SDK subscription shape. Period end and
// price live on the first subscription item.
func subscriptionStateFrom(sub *stripe.Subscription) *SubscriptionState {
	state := &SubscriptionState{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			state.CurrentPeriodEnd = &t
		}
		if item.Price != nil {
			state.PriceID = item.Price.ID
		}
	}
	return state
}

// mapSubscriptionStatus folds Stripe's status vocabulary into the internal
// enum. Anything unrecognized lands on none, which never entitles.
func mapSubscriptionStatus(status string) string {
	switch status {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusNone
	}
}
