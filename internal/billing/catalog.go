package billing

import "sort"

type Catalog struct {
	plans map[Tier]Plan
}

// PriceIDs maps each tier to the provider price it is billed with.
type PriceIDs struct {
	Starter  string
	Pro      string
	Business string
}

func NewCatalog(prices PriceIDs) *Catalog {
	plans := []Plan{
		{
			Tier:              TierStarter,
			Name:              "Starter",
			MonthlyPriceCents: 1900,
			Currency:          "usd",
			Features:          []string{"Text reviews", "Up to 50 video or audio reviews per month", "Embeddable widget"},
			PriceID:           prices.Starter,
		},
		{
			Tier:              TierPro,
			Name:              "Pro",
			MonthlyPriceCents: 4900,
			Currency:          "usd",
			Features:          []string{"Everything in Starter", "Unlimited video and audio reviews", "Custom branding"},
			PriceID:           prices.Pro,
		},
		{
			Tier:              TierBusiness,
			Name:              "Business",
			MonthlyPriceCents: 9900,
			Currency:          "usd",
			Features:          []string{"Everything in Pro", "Google reviews import", "Priority support"},
			PriceID:           prices.Business,
		},
	}

	c := &Catalog{plans: make(map[Tier]Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.Tier] = p
	}
	return c
}

func (c *Catalog) Plan(t Tier) (Plan, bool) {
	p, ok := c.plans[t]
	return p, ok
}

// TierForPrice finds the tier billed with priceID.
func (c *Catalog) TierForPrice(priceID string) (Tier, bool) {
	if priceID == "" {
		return "", false
	}
	for _, p := range c.plans {
		if p.PriceID == priceID {
			return p.Tier, true
		}
	}
	return "", false
}

// Plans lists the plans from cheapest to most expensive.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthlyPriceCents < out[j].MonthlyPriceCents })
	return out
}
