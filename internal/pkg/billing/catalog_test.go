package billing

import (
	"errors"
	"testing"

	"github.com/facturly/facturly/internal/pkg/entitlements"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    Interval
		wantErr bool
	}{
		{in: "", want: IntervalMonth},
		{in: "month", want: IntervalMonth},
		{in: "monthly", want: IntervalMonth},
		{in: "year", want: IntervalYear},
		{in: "YEARLY", want: IntervalYear},
		{in: "weekly", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownPlan) {
				t.Fatalf("ParseInterval(%q) err = %v, want ErrUnknownPlan", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseInterval(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestPlanCatalogRoundTrip(t *testing.T) {
	catalog := testCatalog(t)

	tests := []struct {
		plan     entitlements.Plan
		interval Interval
		price    string
	}{
		{entitlements.PlanPremium, IntervalMonth, "price_premium_month"},
		{entitlements.PlanPremium, IntervalYear, "price_premium_year"},
		{entitlements.PlanPro, IntervalMonth, "price_pro_month"},
		{entitlements.PlanPro, IntervalYear, "price_pro_year"},
	}

	for _, tt := range tests {
		price, err := catalog.PriceFor(tt.plan, tt.interval)
		if err != nil || price != tt.price {
			t.Fatalf("PriceFor(%s, %s) = %q, %v, want %q", tt.plan, tt.interval, price, err, tt.price)
		}
		plan, interval, err := catalog.PlanForPrice(tt.price)
		if err != nil || plan != tt.plan || interval != tt.interval {
			t.Fatalf("PlanForPrice(%q) = %s/%s, %v, want %s/%s", tt.price, plan, interval, err, tt.plan, tt.interval)
		}
	}
}

func TestPlanCatalogFailsClosed(t *testing.T) {
	catalog := testCatalog(t)

	if _, err := catalog.PriceFor(entitlements.PlanFree, IntervalMonth); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan for free plan, got %v", err)
	}
	if _, err := catalog.PriceFor("enterprise", IntervalMonth); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan for unconfigured plan, got %v", err)
	}
	if _, _, err := catalog.PlanForPrice("price_legacy"); !errors.Is(err, ErrUnknownPrice) {
		t.Fatalf("expected ErrUnknownPrice, got %v", err)
	}
}

func TestNewPlanCatalogRejectsDuplicatePrices(t *testing.T) {
	cfg := testConfig()
	cfg.PriceProYearly = cfg.PricePremiumMonthly

	if _, err := NewPlanCatalog(cfg); err == nil {
		t.Fatalf("expected duplicate price ids to be rejected")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missing := testConfig()
	missing.PriceProMonthly = ""
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected missing price id to fail validation")
	}

	badURL := testConfig()
	badURL.PublicBaseURL = "not-a-url"
	if err := badURL.Validate(); err == nil {
		t.Fatalf("expected invalid base url to fail validation")
	}
}
