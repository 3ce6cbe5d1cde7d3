package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/facturly/facturly/app/models"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func testConfig() *Config {
	return &Config{
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: testWebhookSecret,
		PublicBaseURL:       "https://app.facturly.test",
		PricePremiumMonthly: "price_premium_month",
		PricePremiumYearly:  "price_premium_year",
		PriceProMonthly:     "price_pro_month",
		PriceProYearly:      "price_pro_year",
	}
}

func testCatalog(t *testing.T) *PlanCatalog {
	t.Helper()
	catalog, err := NewPlanCatalog(testConfig())
	if err != nil {
		t.Fatalf("building test catalog: %v", err)
	}
	return catalog
}

// signedPayload signs a raw webhook body the way Stripe would.
func signedPayload(t *testing.T, payload []byte) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return sp.Payload, sp.Header
}

// fakeRepo is an in-memory Repository with the same conditional-write
// semantics as the GORM implementation.
type fakeRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.BillingAccount
	events   map[string]*models.BillingWebhookEvent
	nextID   uint

	failApply  error
	failInsert error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts: make(map[string]*models.BillingAccount),
		events:   make(map[string]*models.BillingWebhookEvent),
	}
}

func (r *fakeRepo) addAccount(acc models.BillingAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc.SubscriptionPlan == "" {
		acc.SubscriptionPlan = models.SubscriptionPlanFree
	}
	if acc.SubscriptionStatus == "" {
		acc.SubscriptionStatus = models.SubscriptionStatusNone
	}
	r.accounts[acc.AccountID] = &acc
}

func (r *fakeRepo) account(t *testing.T, accountID string) models.BillingAccount {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[accountID]
	if !ok {
		t.Fatalf("no account %s in fake repo", accountID)
	}
	return *acc
}

func (r *fakeRepo) ledgerRows() []models.BillingWebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]models.BillingWebhookEvent, 0, len(r.events))
	for _, ev := range r.events {
		rows = append(rows, *ev)
	}
	return rows
}

func (r *fakeRepo) GetBillingAccount(ctx context.Context, accountID string) (*models.BillingAccount, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	cp := *acc
	return &cp, nil
}

func (r *fakeRepo) GetBillingAccountByCustomerID(ctx context.Context, customerID string) (*models.BillingAccount, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.StripeCustomerID != nil && *acc.StripeCustomerID == customerID {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: customer %s", ErrAccountNotFound, customerID)
}

func (r *fakeRepo) SetStripeCustomerIDIfUnset(ctx context.Context, accountID, customerID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[accountID]
	if !ok {
		return false, nil
	}
	if acc.StripeCustomerID != nil && *acc.StripeCustomerID != "" {
		return false, nil
	}
	cp := customerID
	acc.StripeCustomerID = &cp
	return true, nil
}

func (r *fakeRepo) ApplySubscriptionChange(ctx context.Context, accountID string, change SubscriptionChange) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failApply != nil {
		return r.failApply
	}
	acc, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	acc.SubscriptionStatus = change.Status
	if change.Plan != nil {
		acc.SubscriptionPlan = *change.Plan
	}
	if change.SetEntitlement {
		acc.EntitlementUntil = change.EntitlementUntil
	}
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return false, nil, r.failInsert
	}
	if stored, ok := r.events[event.StripeEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	r.nextID++
	event.ID = r.nextID
	event.ReceivedAt = time.Now()
	cp := *event
	r.events[event.StripeEventID] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(ctx context.Context, id uint, outcome string, processingErr error) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id {
			now := time.Now()
			ev.Outcome = outcome
			ev.ProcessedAt = &now
			if processingErr != nil {
				ev.ProcessingError = processingErr.Error()
			}
			return nil
		}
	}
	return fmt.Errorf("no ledger row %d", id)
}

// fakeProfiles serves emails for known accounts.
type fakeProfiles map[string]string

func (p fakeProfiles) EmailFor(ctx context.Context, accountID string) (string, error) {
	_ = ctx
	email, ok := p[accountID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return email, nil
}

// fakeGateway records calls and serves canned responses.
type fakeGateway struct {
	mu sync.Mutex

	createCustomerErr error
	checkoutErr       error
	getSubErr         error

	customerSeq  int
	checkoutURL  string
	portalURL    string
	subs         map[string]*SubscriptionState
	lastCheckout CheckoutSessionParams

	createCustomerCalls int
	checkoutCalls       int
	portalCalls         int
	getSubCalls         int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		checkoutURL: "https://checkout.stripe.test/cs_123",
		portalURL:   "https://portal.stripe.test/bps_123",
		subs:        make(map[string]*SubscriptionState),
	}
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCustomerCalls++
	if g.createCustomerErr != nil {
		return "", g.createCustomerErr
	}
	g.customerSeq++
	return fmt.Sprintf("cus_fake_%d", g.customerSeq), nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (string, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkoutCalls++
	if g.checkoutErr != nil {
		return "", g.checkoutErr
	}
	g.lastCheckout = p
	return g.checkoutURL, nil
}

func (g *fakeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	g.portalCalls++
	return g.portalURL, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getSubCalls++
	if g.getSubErr != nil {
		return nil, g.getSubErr
	}
	sub, ok := g.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: get subscription: %s", ErrGatewayUnavailable, subscriptionID)
	}
	cp := *sub
	return &cp, nil
}
