package billing

import (
	"context"
	"fmt"
	"log"

	"github.com/facturly/facturly/internal/pkg/entitlements"
)

// Service implements the synchronous billing entry points: customer identity
// resolution, checkout session issuance, and portal session issuance.
type Service struct {
	repo     Repository
	profiles ProfileDirectory
	gateway  Gateway
	catalog  *PlanCatalog
	cfg      *Config
}

func NewService(repo Repository, profiles ProfileDirectory, gateway Gateway, catalog *PlanCatalog, cfg *Config) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		gateway:  gateway,
		catalog:  catalog,
		cfg:      cfg,
	}
}

// ResolveCustomer returns the Stripe customer id for an account, creating
// and linking one on first use. Linking is a conditional write: when two
// first-time resolutions race, exactly one customer id wins and both callers
// observe it. The loser's Stripe customer stays unlinked and harmless.
func (s *Service) ResolveCustomer(ctx context.Context, accountID string) (string, error) {
	account, err := s.repo.GetBillingAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.HasBillingIdentity() {
		return *account.StripeCustomerID, nil
	}

	email, err := s.profiles.EmailFor(ctx, accountID)
	if err != nil {
		return "", err
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, accountID)
	if err != nil {
		return "", err
	}

	linked, err := s.repo.SetStripeCustomerIDIfUnset(ctx, accountID, customerID)
	if err != nil {
		return "", err
	}
	if !linked {
		// Lost the race: reuse the winner's id.
		account, err = s.repo.GetBillingAccount(ctx, accountID)
		if err != nil {
			return "", err
		}
		if !account.HasBillingIdentity() {
			return "", fmt.Errorf("billing: account %s lost customer link race but has no customer id", accountID)
		}
		log.Printf("billing: discarding duplicate stripe customer %s for account %s, keeping %s",
			customerID, accountID, *account.StripeCustomerID)
		return *account.StripeCustomerID, nil
	}
	return customerID, nil
}

// CreateCheckout validates the plan, resolves the billing identity, and
// requests a subscription-mode hosted checkout session. No plan or status
// field changes here; the user may abandon checkout, so entitlement moves
// only when the completion event arrives.
func (s *Service) CreateCheckout(ctx context.Context, accountID string, plan entitlements.Plan, interval Interval) (string, error) {
	priceID, err := s.catalog.PriceFor(plan, interval)
	if err != nil {
		return "", err
	}

	customerID, err := s.ResolveCustomer(ctx, accountID)
	if err != nil {
		return "", err
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		AccountID:  accountID,
		Plan:       string(plan),
		SuccessURL: s.cfg.CheckoutSuccessURL(),
		CancelURL:  s.cfg.CheckoutCancelURL(),
	})
}

// CreatePortal requests a hosted self-service portal session. An account
// must have checked out at least once; before that there is no Stripe
// customer to manage.
func (s *Service) CreatePortal(ctx context.Context, accountID string) (string, error) {
	account, err := s.repo.GetBillingAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !account.HasBillingIdentity() {
		return "", fmt.Errorf("%w: %s", ErrNoBillingIdentity, accountID)
	}
	return s.gateway.CreatePortalSession(ctx, *account.StripeCustomerID, s.cfg.PortalReturnURL())
}
