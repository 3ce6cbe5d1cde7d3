package billing

import (
	"fmt"
	"strings"

	"github.com/facturly/facturly/internal/pkg/env"
	"github.com/go-playground/validator/v10"
)

// Config is the billing configuration loaded once at startup. A missing
// secret or price id is a deployment mistake and must fail boot, never
// surface as a runtime 500.
type Config struct {
	StripeSecretKey     string `validate:"required"`
	StripeWebhookSecret string `validate:"required"`
	PublicBaseURL       string `validate:"required,url"`

	PricePremiumMonthly string `validate:"required"`
	PricePremiumYearly  string `validate:"required"`
	PriceProMonthly     string `validate:"required"`
	PriceProYearly      string `validate:"required"`
}

// LoadConfig reads the billing configuration from the environment and
// validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StripeSecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		PublicBaseURL:       strings.TrimRight(strings.TrimSpace(env.GetEnv("PUBLIC_BASE_URL", "")), "/"),
		PricePremiumMonthly: strings.TrimSpace(env.GetEnv("STRIPE_PRICE_PREMIUM_MONTHLY_ID", "")),
		PricePremiumYearly:  strings.TrimSpace(env.GetEnv("STRIPE_PRICE_PREMIUM_YEARLY_ID", "")),
		PriceProMonthly:     strings.TrimSpace(env.GetEnv("STRIPE_PRICE_PRO_MONTHLY_ID", "")),
		PriceProYearly:      strings.TrimSpace(env.GetEnv("STRIPE_PRICE_PRO_YEARLY_ID", "")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("billing config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	return v.Struct(c)
}

// CheckoutSuccessURL is where Stripe redirects after a completed checkout.
func (c *Config) CheckoutSuccessURL() string {
	return c.PublicBaseURL + "/dashboard/subscription?success=true"
}

// CheckoutCancelURL is where Stripe redirects after an abandoned checkout.
func (c *Config) CheckoutCancelURL() string {
	return c.PublicBaseURL + "/dashboard/subscription?canceled=true"
}

// PortalReturnURL is where the Stripe customer portal sends the user back.
func (c *Config) PortalReturnURL() string {
	return c.PublicBaseURL + "/dashboard/subscription"
}
