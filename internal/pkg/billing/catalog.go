package billing

import (
	"fmt"
	"strings"

	"github.com/facturly/facturly/internal/pkg/entitlements"
)

// Interval is the billing interval of a paid plan.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// ParseInterval normalizes user input to a known interval. An empty value
// defaults to monthly; anything else is rejected.
func ParseInterval(raw string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "month", "monthly":
		return IntervalMonth, nil
	case "year", "yearly":
		return IntervalYear, nil
	default:
		return "", fmt.Errorf("%w: interval %q", ErrUnknownPlan, raw)
	}
}

type catalogKey struct {
	plan     entitlements.Plan
	interval Interval
}

// PlanCatalog maps paid plans to Stripe price ids and back. It is built once
// from deployment configuration; an unknown plan or price fails closed,
// never falls back to a default.
type PlanCatalog struct {
	prices  map[catalogKey]string
	inverse map[string]catalogKey
}

// NewPlanCatalog builds the catalog from config. Config validation already
// guarantees non-empty price ids; duplicates across entries are caught here
// because they would make the inverse mapping ambiguous.
func NewPlanCatalog(cfg *Config) (*PlanCatalog, error) {
	entries := map[catalogKey]string{
		{entitlements.PlanPremium, IntervalMonth}: cfg.PricePremiumMonthly,
		{entitlements.PlanPremium, IntervalYear}:  cfg.PricePremiumYearly,
		{entitlements.PlanPro, IntervalMonth}:     cfg.PriceProMonthly,
		{entitlements.PlanPro, IntervalYear}:      cfg.PriceProYearly,
	}

	c := &PlanCatalog{
		prices:  make(map[catalogKey]string, len(entries)),
		inverse: make(map[string]catalogKey, len(entries)),
	}
	for key, priceID := range entries {
		if priceID == "" {
			return nil, fmt.Errorf("plan catalog: missing price id for %s/%s", key.plan, key.interval)
		}
		if prev, ok := c.inverse[priceID]; ok {
			return nil, fmt.Errorf("plan catalog: price %s configured for both %s/%s and %s/%s",
				priceID, prev.plan, prev.interval, key.plan, key.interval)
		}
		c.prices[key] = priceID
		c.inverse[priceID] = key
	}
	return c, nil
}

// PriceFor resolves a plan and interval to a Stripe price id.
func (c *PlanCatalog) PriceFor(plan entitlements.Plan, interval Interval) (string, error) {
	priceID, ok := c.prices[catalogKey{plan, interval}]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownPlan, plan, interval)
	}
	return priceID, nil
}

// PlanForPrice is the inverse mapping, used when a subscription-updated
// event carries a new price and the plan label must be re-derived.
func (c *PlanCatalog) PlanForPrice(priceID string) (entitlements.Plan, Interval, error) {
	key, ok := c.inverse[priceID]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownPrice, priceID)
	}
	return key.plan, key.interval, nil
}
