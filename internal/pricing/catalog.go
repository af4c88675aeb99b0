// Package pricing implements the subscription pricing calculator: static
// tier/add-on catalogs plus the quote computation used at checkout.
package pricing

// ServiceTier is a single-family pricing plan. Each tier unlocks a fixed
// discount percentage on add-on services.
type ServiceTier struct {
	ID            string
	Name          string
	MonthlyPrice  float64
	AddOnDiscount float64 // fraction, e.g. 0.05
	Features      []string
}

// VolumeBand is one step of a community tier's volume discount. A band
// applies when the unit count reaches MinUnits and the selected contract
// length is at least MinTermMonths.
type VolumeBand struct {
	MinUnits      int
	Discount      float64
	MinTermMonths int
}

// CommunityTier is a multi-family plan priced per unit with stepped volume
// discounts.
type CommunityTier struct {
	ID           string
	Name         string
	PerUnitPrice float64
	VolumeBands  []VolumeBand
}

// AddOnPricingModel describes how an add-on's base price is quoted.
type AddOnPricingModel string

const (
	PerMonth  AddOnPricingModel = "per_month"
	PerPickup AddOnPricingModel = "per_pickup"
)

// AddOn is an optional extra service priced independently of the base tier.
type AddOn struct {
	ID           string
	Name         string
	BasePrice    float64
	PricingModel AddOnPricingModel
}

// serviceTiers is immutable reference data; order matches the upgrade path.
var serviceTiers = []ServiceTier{
	{
		ID:            "standard",
		Name:          "Standard",
		MonthlyPrice:  54.99,
		AddOnDiscount: 0.05,
		Features:      []string{"Weekly curbside pickup", "One 96-gallon cart"},
	},
	{
		ID:            "premium",
		Name:          "Premium",
		MonthlyPrice:  89.99,
		AddOnDiscount: 0.07,
		Features:      []string{"Twice-weekly pickup", "Two carts", "Recycling included"},
	},
	{
		ID:            "comprehensive",
		Name:          "Comprehensive",
		MonthlyPrice:  129.99,
		AddOnDiscount: 0.10,
		Features:      []string{"Twice-weekly pickup", "Recycling and yard waste", "Driveway service"},
	},
	{
		ID:            "elite",
		Name:          "Elite",
		MonthlyPrice:  179.99,
		AddOnDiscount: 0.10,
		Features:      []string{"On-demand pickup", "All streams included", "Priority support"},
	},
}

// communityVolumeBands is shared by all community tiers: 5-9 units, 10-49
// units, 50+ units. Bands are listed ascending; the last band matching both
// the unit count and the contract term wins.
var communityVolumeBands = []VolumeBand{
	{MinUnits: 5, Discount: 0.05, MinTermMonths: 3},
	{MinUnits: 10, Discount: 0.08, MinTermMonths: 6},
	{MinUnits: 50, Discount: 0.12, MinTermMonths: 12},
}

var communityTiers = []CommunityTier{
	{
		ID:           "community-essential",
		Name:         "Community Essential",
		PerUnitPrice: 24.99,
		VolumeBands:  communityVolumeBands,
	},
	{
		ID:           "community-complete",
		Name:         "Community Complete",
		PerUnitPrice: 39.99,
		VolumeBands:  communityVolumeBands,
	},
}

var addOns = []AddOn{
	{ID: "extra-bin", Name: "Extra Bin", BasePrice: 12.00, PricingModel: PerMonth},
	{ID: "yard-waste", Name: "Yard Waste Collection", BasePrice: 18.50, PricingModel: PerMonth},
	{ID: "recycling-plus", Name: "Recycling Plus", BasePrice: 9.99, PricingModel: PerMonth},
	{ID: "bin-cleaning", Name: "Bin Cleaning", BasePrice: 15.00, PricingModel: PerMonth},
	{ID: "bulky-pickup", Name: "Bulky Item Pickup", BasePrice: 25.00, PricingModel: PerPickup},
}

// ServiceTiers returns the single-family tier catalog.
func ServiceTiers() []ServiceTier { return serviceTiers }

// CommunityTiers returns the multi-family tier catalog.
func CommunityTiers() []CommunityTier { return communityTiers }

// AddOns returns the add-on service catalog.
func AddOns() []AddOn { return addOns }

// ServiceTierByID looks up a single-family tier.
func ServiceTierByID(id string) (ServiceTier, bool) {
	for _, t := range serviceTiers {
		if t.ID == id {
			return t, true
		}
	}
	return ServiceTier{}, false
}

// CommunityTierByID looks up a multi-family tier.
func CommunityTierByID(id string) (CommunityTier, bool) {
	for _, t := range communityTiers {
		if t.ID == id {
			return t, true
		}
	}
	return CommunityTier{}, false
}

// AddOnByID looks up an add-on service.
func AddOnByID(id string) (AddOn, bool) {
	for _, a := range addOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOn{}, false
}
