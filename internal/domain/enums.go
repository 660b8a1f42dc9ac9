package domain

// Availability represents the stock state of a product card as rendered by
// the storefront
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
)

// IsValid checks if the availability value is one the storefront renders
func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityInStock, AvailabilityOutOfStock:
		return true
	default:
		return false
	}
}

// TagMatchMode selects how selected tags are matched against a card's tags
type TagMatchMode string

const (
	// TagMatchAll requires the card to carry every selected tag
	TagMatchAll TagMatchMode = "all"
	// TagMatchAny requires the card to carry at least one selected tag
	TagMatchAny TagMatchMode = "any"
)

func (m TagMatchMode) IsValid() bool {
	return m == TagMatchAll || m == TagMatchAny
}

// EmptyStatePolicy decides when the "no results" indicator is shown
type EmptyStatePolicy string

const (
	// EmptyStateWhenZero shows the indicator whenever no cards are visible
	EmptyStateWhenZero EmptyStatePolicy = "when_zero"
	// EmptyStateWhenFiltered shows the indicator only when filters caused the
	// empty result; an intrinsically empty collection stays quiet
	EmptyStateWhenFiltered EmptyStatePolicy = "when_filtered"
)

func (p EmptyStatePolicy) IsValid() bool {
	return p == EmptyStateWhenZero || p == EmptyStateWhenFiltered
}

// PriceFilterMode selects between a single ceiling slider and discrete
// checkbox price buckets
type PriceFilterMode string

const (
	PriceFilterCeiling PriceFilterMode = "ceiling"
	PriceFilterBuckets PriceFilterMode = "buckets"
)

func (m PriceFilterMode) IsValid() bool {
	return m == PriceFilterCeiling || m == PriceFilterBuckets
}

// OversellPolicy mirrors Shopify's per-variant inventory policy
type OversellPolicy string

const (
	// OversellDeny blocks any request beyond available stock minus what the
	// cart already holds
	OversellDeny OversellPolicy = "deny"
	// OversellContinue allows bounded overselling with a warning
	OversellContinue OversellPolicy = "continue"
)

func (p OversellPolicy) IsValid() bool {
	return p == OversellDeny || p == OversellContinue
}
