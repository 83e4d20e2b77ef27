package plans

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound      = errors.New("plan not found")
	ErrInvalidPlanConfig = errors.New("invalid plan configuration")
)

// Entry is one purchasable (plan, period) combination.
type Entry struct {
	PlanType PlanType      `json:"plan_type"`
	Period   BillingPeriod `json:"billing_period"`
	PriceID  string        `json:"price_id"`
	Credits  int           `json:"credits"`
	Name     string        `json:"name"`
}

type key struct {
	plan   PlanType
	period BillingPeriod
}

// Catalog is built once at start-up and never mutated afterwards, so it is
// safe to share between handlers.
type Catalog struct {
	entries map[key]Entry
	byPrice map[string]Entry
	order   []key
}

// NewCatalog validates entries and fails on duplicates. Price ids must be
// unique because reconciliation maps a paid price back to its credit grant.
func NewCatalog(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[key]Entry, len(entries)),
		byPrice: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if _, ok := ParsePlanType(string(e.PlanType)); !ok {
			return nil, fmt.Errorf("%w: unknown plan type %q", ErrInvalidPlanConfig, e.PlanType)
		}
		if _, ok := ParseBillingPeriod(string(e.Period)); !ok {
			return nil, fmt.Errorf("%w: unknown billing period %q", ErrInvalidPlanConfig, e.Period)
		}
		if e.PriceID == "" {
			return nil, fmt.Errorf("%w: %s/%s has no price id", ErrInvalidPlanConfig, e.PlanType, e.Period)
		}
		if e.Credits <= 0 {
			return nil, fmt.Errorf("%w: %s/%s grants %d credits", ErrInvalidPlanConfig, e.PlanType, e.Period, e.Credits)
		}
		k := key{e.PlanType, e.Period}
		if _, dup := c.entries[k]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %s/%s", ErrInvalidPlanConfig, e.PlanType, e.Period)
		}
		if other, dup := c.byPrice[e.PriceID]; dup {
			return nil, fmt.Errorf("%w: price %s used by %s/%s and %s/%s",
				ErrInvalidPlanConfig, e.PriceID, other.PlanType, other.Period, e.PlanType, e.Period)
		}
		c.entries[k] = e
		c.byPrice[e.PriceID] = e
		c.order = append(c.order, k)
	}
	return c, nil
}

// Resolve returns the entry for a plan and period. A missing annual entry
// falls back to the monthly entry of the same plan.
func (c *Catalog) Resolve(plan PlanType, period BillingPeriod) (Entry, error) {
	if e, ok := c.entries[key{plan, period}]; ok {
		return e, nil
	}
	if period == Annual {
		if e, ok := c.entries[key{plan, Monthly}]; ok {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s/%s", ErrPlanNotFound, plan, period)
}

func (c *Catalog) ResolveByPriceID(priceID string) (Entry, error) {
	if e, ok := c.byPrice[priceID]; ok && priceID != "" {
		return e, nil
	}
	return Entry{}, fmt.Errorf("%w: price %q", ErrPlanNotFound, priceID)
}

// Entries lists the catalog in construction order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}

const (
	BasicCredits = 20
	ProCredits   = 50
)

// PriceIDs carries the gateway price identifiers from configuration. Annual
// ids are optional.
type PriceIDs struct {
	BasicMonthly string
	BasicAnnual  string
	ProMonthly   string
	ProAnnual    string
}

// DefaultCatalog builds the product catalog. Annual entries are only added
// when their price is configured; Resolve covers the gap otherwise.
func DefaultCatalog(p PriceIDs) (*Catalog, error) {
	entries := []Entry{
		{PlanType: PlanBasic, Period: Monthly, PriceID: p.BasicMonthly, Credits: BasicCredits, Name: "Basic Monthly"},
		{PlanType: PlanPro, Period: Monthly, PriceID: p.ProMonthly, Credits: ProCredits, Name: "Pro Monthly"},
	}
	if p.BasicAnnual != "" {
		entries = append(entries, Entry{PlanType: PlanBasic, Period: Annual, PriceID: p.BasicAnnual, Credits: BasicCredits, Name: "Basic Annual"})
	}
	if p.ProAnnual != "" {
		entries = append(entries, Entry{PlanType: PlanPro, Period: Annual, PriceID: p.ProAnnual, Credits: ProCredits, Name: "Pro Annual"})
	}
	return NewCatalog(entries...)
}
