package entitlements

import (
	"strings"

	"github.com/facturly/facturly/app/models"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

// Normalize maps arbitrary input to a known plan, falling back to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPremium):
		return PlanPremium
	case string(PlanPro):
		return PlanPro
	default:
		return PlanFree
	}
}

// IsPaid reports whether the plan unlocks paid features.
func IsPaid(plan Plan) bool {
	return plan == PlanPremium || plan == PlanPro
}

func Rank(plan Plan) int {
	switch plan {
	case PlanPro:
		return 2
	case PlanPremium:
		return 1
	default:
		return 0
	}
}

// Effective returns the plan an account is actually entitled to. The stored
// plan label only counts while the subscription is active; any other status
// degrades to free so a stale label cannot grant access.
func Effective(account *models.BillingAccount) Plan {
	if account == nil {
		return PlanFree
	}
	if account.SubscriptionStatus != models.SubscriptionStatusActive {
		return PlanFree
	}
	return Normalize(account.SubscriptionPlan)
}
