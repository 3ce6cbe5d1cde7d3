package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/facturly/facturly/app/models"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Result classifies how an authenticated webhook delivery ended. Everything
// here maps to HTTP 200 at the transport boundary; returning an error to
// Stripe is reserved for transient failures worth redelivering.
type Result string

const (
	ResultApplied      Result = "applied"
	ResultIgnored      Result = "ignored"
	ResultDuplicate    Result = "duplicate"
	ResultUnresolvable Result = "unresolvable"
)

// Processor turns the unordered, at-least-once Stripe event stream into
// monotonically-consistent billing account state. Authenticity is checked
// before anything else; the ledger makes redelivery idempotent; every
// transition is an absolute-state overwrite derived from the event payload.
type Processor struct {
	repo          Repository
	gateway       Gateway
	catalog       *PlanCatalog
	deduper       *EventDeduper
	webhookSecret string
}

// NewProcessor wires a webhook processor. deduper may be nil; the ledger's
// conditional insert is the correctness mechanism either way.
func NewProcessor(repo Repository, gateway Gateway, catalog *PlanCatalog, deduper *EventDeduper, webhookSecret string) *Processor {
	return &Processor{
		repo:          repo,
		gateway:       gateway,
		catalog:       catalog,
		deduper:       deduper,
		webhookSecret: webhookSecret,
	}
}

// Process verifies, deduplicates, and applies one raw webhook delivery.
// rawBody must be the exact bytes Stripe sent; the signature covers them.
func (p *Processor) Process(ctx context.Context, rawBody []byte, signatureHeader string) (Result, error) {
	event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		// Security event: unauthenticated payload, touch no state.
		log.Printf("billing: webhook signature rejected: %v", err)
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if p.deduper != nil && p.deduper.Seen(ctx, event.ID) {
		return ResultDuplicate, nil
	}

	created, stored, err := p.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		StripeEventID:  event.ID,
		EventType:      string(event.Type),
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
	})
	if err != nil {
		return "", err
	}
	if !created && stored.Terminal() {
		p.markSeen(ctx, event.ID)
		return ResultDuplicate, nil
	}
	// A pre-existing non-terminal row belongs to a delivery that died before
	// finishing. Transitions are absolute-state overwrites, so reapplying
	// here is safe.

	parsed, err := parseEvent(event)
	if err != nil {
		p.finish(ctx, stored.ID, event.ID, models.WebhookOutcomeFailed, err)
		return "", err
	}

	switch e := parsed.(type) {
	case IgnoredEvent:
		p.finish(ctx, stored.ID, event.ID, models.WebhookOutcomeIgnored, nil)
		return ResultIgnored, nil
	case CheckoutCompletedEvent:
		return p.applyCheckoutCompleted(ctx, stored.ID, event.ID, e)
	case SubscriptionUpdatedEvent:
		return p.applySubscriptionUpdated(ctx, stored.ID, event.ID, e)
	case SubscriptionDeletedEvent:
		return p.applySubscriptionDeleted(ctx, stored.ID, event.ID, e)
	case InvoicePaymentFailedEvent:
		return p.applyInvoicePaymentFailed(ctx, stored.ID, event.ID, e)
	default:
		err := fmt.Errorf("billing: unhandled event variant %T", parsed)
		p.finish(ctx, stored.ID, event.ID, models.WebhookOutcomeFailed, err)
		return "", err
	}
}

// applyCheckoutCompleted attributes a fresh subscription to an account via
// the checkout metadata and pulls status and period end from the
// subscription itself, which the checkout event does not carry.
func (p *Processor) applyCheckoutCompleted(ctx context.Context, ledgerID uint, eventID string, e CheckoutCompletedEvent) (Result, error) {
	sub, err := p.gateway.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		// The subscription may not be materialized yet. Leave the ledger row
		// non-terminal so Stripe's redelivery retries the whole event.
		return "", err
	}

	account, err := p.repo.GetBillingAccount(ctx, e.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return p.unresolvable(ctx, ledgerID, eventID, err)
		}
		return "", err
	}

	customerID := sub.CustomerID
	if customerID == "" {
		customerID = e.CustomerID
	}
	if customerID != "" {
		if account.HasBillingIdentity() {
			if *account.StripeCustomerID != customerID {
				log.Printf("billing: account %s linked to customer %s but checkout event %s carries %s",
					account.AccountID, *account.StripeCustomerID, eventID, customerID)
			}
		} else if _, err := p.repo.SetStripeCustomerIDIfUnset(ctx, account.AccountID, customerID); err != nil {
			return "", err
		}
	}

	plan := string(e.Plan)
	err = p.repo.ApplySubscriptionChange(ctx, account.AccountID, SubscriptionChange{
		Plan:             &plan,
		Status:           mapSubscriptionStatus(sub.Status),
		EntitlementUntil: sub.CurrentPeriodEnd,
		SetEntitlement:   true,
	})
	if err != nil {
		return "", err
	}
	p.finish(ctx, ledgerID, eventID, models.WebhookOutcomeApplied, nil)
	return ResultApplied, nil
}

func (p *Processor) applySubscriptionUpdated(ctx context.Context, ledgerID uint, eventID string, e SubscriptionUpdatedEvent) (Result, error) {
	account, err := p.repo.GetBillingAccountByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return p.unresolvable(ctx, ledgerID, eventID, err)
		}
		return "", err
	}

	change := SubscriptionChange{
		Status:           mapSubscriptionStatus(e.Status),
		EntitlementUntil: e.PeriodEnd,
		SetEntitlement:   true,
	}
	// The plan label only moves when the event shows a price change that
	// maps back through the catalog.
	if e.PriceID != "" {
		if plan, _, perr := p.catalog.PlanForPrice(e.PriceID); perr == nil {
			if string(plan) != account.SubscriptionPlan {
				ps := string(plan)
				change.Plan = &ps
			}
		} else {
			log.Printf("billing: customer %s moved to unmapped price %s, keeping plan %q",
				e.CustomerID, e.PriceID, account.SubscriptionPlan)
		}
	}

	if err := p.repo.ApplySubscriptionChange(ctx, account.AccountID, change); err != nil {
		return "", err
	}
	p.finish(ctx, ledgerID, eventID, models.WebhookOutcomeApplied, nil)
	return ResultApplied, nil
}

// applySubscriptionDeleted is the terminal, unconditional downgrade.
func (p *Processor) applySubscriptionDeleted(ctx context.Context, ledgerID uint, eventID string, e SubscriptionDeletedEvent) (Result, error) {
	account, err := p.repo.GetBillingAccountByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return p.unresolvable(ctx, ledgerID, eventID, err)
		}
		return "", err
	}

	free := models.SubscriptionPlanFree
	err = p.repo.ApplySubscriptionChange(ctx, account.AccountID, SubscriptionChange{
		Plan:             &free,
		Status:           models.SubscriptionStatusCanceled,
		EntitlementUntil: nil,
		SetEntitlement:   true,
	})
	if err != nil {
		return "", err
	}
	p.finish(ctx, ledgerID, eventID, models.WebhookOutcomeApplied, nil)
	return ResultApplied, nil
}

// applyInvoicePaymentFailed flips the status only. The account may still be
// inside its paid period while Stripe retries the charge, so plan and
// entitlement_until stay untouched.
func (p *Processor) applyInvoicePaymentFailed(ctx context.Context, ledgerID uint, eventID string, e InvoicePaymentFailedEvent) (Result, error) {
	account, err := p.repo.GetBillingAccountByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return p.unresolvable(ctx, ledgerID, eventID, err)
		}
		return "", err
	}

	err = p.repo.ApplySubscriptionChange(ctx, account.AccountID, SubscriptionChange{
		Status: models.SubscriptionStatusPastDue,
	})
	if err != nil {
		return "", err
	}
	p.finish(ctx, ledgerID, eventID, models.WebhookOutcomeApplied, nil)
	return ResultApplied, nil
}

// unresolvable records a structurally unprocessable event. The transport
// still answers 200 to stop futile retries; operators find it through the
// log and the ledger outcome.
func (p *Processor) unresolvable(ctx context.Context, ledgerID uint, eventID string, cause error) (Result, error) {
	log.Printf("billing: webhook event %s unresolvable: %v", eventID, cause)
	p.finish(ctx, ledgerID, eventID, models.WebhookOutcomeUnresolvable, cause)
	return ResultUnresolvable, nil
}

func (p *Processor) finish(ctx context.Context, ledgerID uint, eventID, outcome string, cause error) {
	if err := p.repo.MarkWebhookProcessed(ctx, ledgerID, outcome, cause); err != nil {
		// Leave the row non-terminal; redelivery will finalize it.
		log.Printf("billing: failed to record outcome %s for event %s: %v", outcome, eventID, err)
		return
	}
	p.markSeen(ctx, eventID)
}

func (p *Processor) markSeen(ctx context.Context, eventID string) {
	if p.deduper != nil {
		p.deduper.MarkSeen(ctx, eventID)
	}
}
