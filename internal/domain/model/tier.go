package model

import (
	"time"

	"healthtrack-billing/internal/domain"
)

type TierCode string

const (
	TierFree         TierCode = "free"
	TierBasic        TierCode = "basic"
	TierPremium      TierCode = "premium"
	TierProfessional TierCode = "professional"
)

type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// Tier is one entry of the subscription catalog. Rows are administrative
// configuration and read-only to the rest of the system.
type Tier struct {
	Code         TierCode
	Name         string
	Rank         int // total order for upgrade/downgrade comparison; free = 0
	PriceMonthly float64
	PriceYearly  float64
	Features     FeatureSet
	// Pre-configured provider price ids. Nil when prices are created on demand.
	StripePriceMonthly *string
	StripePriceYearly  *string
	Active             bool
	DisplayOrder       int
	CreatedAt          time.Time
}

func (t *Tier) IsZero() bool { return t == nil || t.Code == "" }

// NewTier validates and constructs a catalog entry.
func NewTier(code TierCode, name string, rank int, priceMonthly, priceYearly float64, features FeatureSet) (*Tier, error) {
	if code == "" || name == "" || rank < 0 || priceMonthly < 0 || priceYearly < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Tier{
		Code:         code,
		Name:         name,
		Rank:         rank,
		PriceMonthly: priceMonthly,
		PriceYearly:  priceYearly,
		Features:     features,
		Active:       true,
		DisplayOrder: rank,
		CreatedAt:    time.Now(),
	}, nil
}

func (t *Tier) PriceFor(period BillingPeriod) float64 {
	if period == PeriodYearly {
		return t.PriceYearly
	}
	return t.PriceMonthly
}

func (t *Tier) StripePriceFor(period BillingPeriod) *string {
	if period == PeriodYearly {
		return t.StripePriceYearly
	}
	return t.StripePriceMonthly
}

// MatchesPrice reports whether the given provider price id belongs to this
// tier's monthly or yearly slot.
func (t *Tier) MatchesPrice(priceID string) bool {
	if priceID == "" {
		return false
	}
	if t.StripePriceMonthly != nil && *t.StripePriceMonthly == priceID {
		return true
	}
	return t.StripePriceYearly != nil && *t.StripePriceYearly == priceID
}

// FallbackFreeTier is the built-in free tier used when the catalog has no
// usable entry. Unknown data never blocks entitlement evaluation; it only
// degrades it to the most restrictive bundle.
func FallbackFreeTier() *Tier {
	days := 7
	return &Tier{
		Code:     TierFree,
		Name:     "Free",
		Rank:     0,
		Features: FeatureSet{HistoryDays: &days, Insights: "basic"},
		Active:   true,
	}
}
