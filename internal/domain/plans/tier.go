package plans

import "strings"

// PlanType constants (single source of truth)
type PlanType string

const (
	PlanBasic PlanType = "basic"
	PlanPro   PlanType = "pro"
)

type BillingPeriod string

const (
	Monthly BillingPeriod = "monthly"
	Annual  BillingPeriod = "annual"
)

// ParsePlanType normalizes user or metadata input. The second value is false
// for anything that is not a known plan.
func ParsePlanType(s string) (PlanType, bool) {
	switch PlanType(strings.ToLower(strings.TrimSpace(s))) {
	case PlanBasic:
		return PlanBasic, true
	case PlanPro:
		return PlanPro, true
	}
	return "", false
}

func ParseBillingPeriod(s string) (BillingPeriod, bool) {
	switch BillingPeriod(strings.ToLower(strings.TrimSpace(s))) {
	case Monthly:
		return Monthly, true
	case Annual:
		return Annual, true
	}
	return "", false
}

// PeriodFor maps the checkout form's isAnnual flag to a billing period.
func PeriodFor(isAnnual bool) BillingPeriod {
	if isAnnual {
		return Annual
	}
	return Monthly
}
