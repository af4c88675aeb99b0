package pricing

import (
	"errors"
	"math"
)

// Duration is the contract length selected at checkout.
type Duration string

const (
	Monthly   Duration = "monthly"
	Quarterly Duration = "quarterly"
	Yearly    Duration = "yearly"
)

// PaymentType distinguishes recurring billing from a single upfront payment.
type PaymentType string

const (
	Recurring PaymentType = "recurring"
	OneTime   PaymentType = "one-time"
)

// PlanKind selects between the single-family and multi-family catalogs.
type PlanKind string

const (
	SingleFamily PlanKind = "single_family"
	MultiFamily  PlanKind = "multi_family"
)

const (
	// bundleDiscount applies to every add-on after the first selected one,
	// on top of the tier discount (applied to the already-discounted price).
	bundleDiscount = 0.25

	// prepayDiscount applies only to yearly contracts paid one-time.
	prepayDiscount = 0.10

	// autoPayCredit is the advertised flat monthly credit for recurring
	// payment. It is reported on the quote but intentionally not subtracted
	// from the total: the computed total has never included it, and checkout
	// parity with the historical behavior takes precedence over the UI copy.
	autoPayCredit = 3.00
)

var (
	ErrNoPlanSelected  = errors.New("pricing: a tier must be selected before computing a total")
	ErrUnknownTier     = errors.New("pricing: unknown tier id")
	ErrUnknownAddOn    = errors.New("pricing: unknown add-on id")
	ErrInvalidUnits    = errors.New("pricing: unit count must be at least 1")
	ErrInvalidDuration = errors.New("pricing: invalid contract duration")
	ErrInvalidPayment  = errors.New("pricing: invalid payment type")
)

// Selection captures a customer's checkout choices. AddOnIDs preserve the
// order the customer picked them in; the first selected add-on never receives
// the bundle discount.
type Selection struct {
	Kind        PlanKind
	TierID      string
	AddOnIDs    []string
	UnitCount   int // multi-family only
	Duration    Duration
	PaymentType PaymentType
}

// QuoteItem is one priced add-on line in a quote breakdown.
type QuoteItem struct {
	AddOnID        string  `json:"addon_id"`
	Name           string  `json:"name"`
	BasePrice      float64 `json:"base_price"`
	Price          float64 `json:"price"`
	BundleDiscount bool    `json:"bundle_discount"`
}

// Quote is the priced result of a selection, suitable for checkout display.
// All monetary fields are rounded to two decimals.
type Quote struct {
	PlanID         string      `json:"plan_id"`
	PlanName       string      `json:"plan_name"`
	BaseMonthly    float64     `json:"base_monthly"`
	Items          []QuoteItem `json:"items"`
	MonthlyTotal   float64     `json:"monthly_total"`
	Total          float64     `json:"total"`
	Duration       Duration    `json:"duration"`
	PaymentType    PaymentType `json:"payment_type"`
	PrepayApplied  bool        `json:"prepay_applied"`
	VolumeDiscount float64     `json:"volume_discount,omitempty"`
	MinTermMonths  int         `json:"min_term_months,omitempty"`

	// AutoPayCredit is the advertised $/month credit for recurring payment.
	// It is informational only and is not reflected in Total.
	AutoPayCredit float64 `json:"auto_pay_credit,omitempty"`
}

// months maps a duration to its multiplier over the monthly total.
func months(d Duration) (int, error) {
	switch d {
	case Monthly:
		return 1, nil
	case Quarterly:
		return 3, nil
	case Yearly:
		return 12, nil
	default:
		return 0, ErrInvalidDuration
	}
}

// Round2 rounds a monetary amount to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Calculate produces a quote for the given selection.
//
// The composition order is fixed: per-add-on tier discount, then the 25%
// bundle discount for second-and-later add-ons, then the duration
// multiplier, then the 10% prepay discount for yearly one-time contracts.
// The flat auto-pay credit is never part of the computation.
func Calculate(sel Selection) (Quote, error) {
	if sel.TierID == "" {
		return Quote{}, ErrNoPlanSelected
	}

	switch sel.PaymentType {
	case Recurring, OneTime:
	default:
		return Quote{}, ErrInvalidPayment
	}

	termMonths, err := months(sel.Duration)
	if err != nil {
		return Quote{}, err
	}

	var (
		q             Quote
		addOnDiscount float64
	)
	q.Duration = sel.Duration
	q.PaymentType = sel.PaymentType

	switch sel.Kind {
	case MultiFamily:
		tier, ok := CommunityTierByID(sel.TierID)
		if !ok {
			return Quote{}, ErrUnknownTier
		}
		if sel.UnitCount < 1 {
			return Quote{}, ErrInvalidUnits
		}
		band, banded := applicableBand(tier.VolumeBands, sel.UnitCount, termMonths)
		base := tier.PerUnitPrice * float64(sel.UnitCount)
		if banded {
			base *= 1 - band.Discount
			q.VolumeDiscount = band.Discount
			q.MinTermMonths = band.MinTermMonths
		}
		q.PlanID = tier.ID
		q.PlanName = tier.Name
		q.BaseMonthly = base
		// Community plans reuse the entry tier's add-on discount rate.
		addOnDiscount = serviceTiers[0].AddOnDiscount

	case SingleFamily, "":
		tier, ok := ServiceTierByID(sel.TierID)
		if !ok {
			return Quote{}, ErrUnknownTier
		}
		q.PlanID = tier.ID
		q.PlanName = tier.Name
		q.BaseMonthly = tier.MonthlyPrice
		addOnDiscount = tier.AddOnDiscount

	default:
		return Quote{}, ErrUnknownTier
	}

	monthly := q.BaseMonthly
	for i, id := range sel.AddOnIDs {
		addOn, ok := AddOnByID(id)
		if !ok {
			return Quote{}, ErrUnknownAddOn
		}
		price := addOn.BasePrice * (1 - addOnDiscount)
		bundled := i > 0
		if bundled {
			price *= 1 - bundleDiscount
		}
		monthly += price
		q.Items = append(q.Items, QuoteItem{
			AddOnID:        addOn.ID,
			Name:           addOn.Name,
			BasePrice:      addOn.BasePrice,
			Price:          Round2(price),
			BundleDiscount: bundled,
		})
	}

	total := monthly * float64(termMonths)
	if sel.Duration == Yearly && sel.PaymentType == OneTime {
		total *= 1 - prepayDiscount
		q.PrepayApplied = true
	}

	if sel.PaymentType == Recurring {
		q.AutoPayCredit = autoPayCredit
	}

	q.BaseMonthly = Round2(q.BaseMonthly)
	q.MonthlyTotal = Round2(monthly)
	q.Total = Round2(total)
	return q, nil
}

// applicableBand scans bands in ascending order and keeps the last one whose
// unit and term requirements are both met, so larger communities always get
// the better rate.
func applicableBand(bands []VolumeBand, units, termMonths int) (VolumeBand, bool) {
	var (
		match VolumeBand
		found bool
	)
	for _, b := range bands {
		if units >= b.MinUnits && termMonths >= b.MinTermMonths {
			match = b
			found = true
		}
	}
	return match, found
}
