package domain

import (
	"strconv"
	"strings"
)

// ProductCard represents one product tile in a collection grid, read from the
// server-rendered markup at page load. The filter engine only reads these
// attributes and projects a visibility flag.
type ProductCard struct {
	Handle     string       `json:"handle"`
	Tags       []string     `json:"tags"`
	Available  Availability `json:"available"`
	PriceCents int64        `json:"price_cents"`
	PriceKnown bool         `json:"price_known"`
}

// HasTag reports whether the card carries the given tag
func (c ProductCard) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ParseProductCard builds a card from raw data attributes as the storefront
// renders them (comma-separated tags, price in cents). A non-numeric price
// leaves PriceKnown false instead of failing.
func ParseProductCard(handle, rawTags, rawAvailable, rawPrice string) ProductCard {
	card := ProductCard{Handle: handle}
	for _, t := range strings.Split(rawTags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			card.Tags = append(card.Tags, t)
		}
	}
	card.Available = Availability(rawAvailable)
	if price, err := strconv.ParseInt(strings.TrimSpace(rawPrice), 10, 64); err == nil && price >= 0 {
		card.PriceCents = price
		card.PriceKnown = true
	}
	return card
}

// PriceBucket is one discrete [Min, Max] price range in cents, used by the
// checkbox-bucket filter variant
type PriceBucket struct {
	MinCents int64 `json:"min_cents"`
	MaxCents int64 `json:"max_cents"`
}

// Contains reports whether the price falls inside the bucket (inclusive)
func (b PriceBucket) Contains(priceCents int64) bool {
	return priceCents >= b.MinCents && priceCents <= b.MaxCents
}

// FilterCriteria is derived each time the filter controls change. Empty
// selected sets are permissive: they mean "match all", not "match none".
type FilterCriteria struct {
	SelectedTags         []string       `json:"selected_tags"`
	SelectedAvailability []Availability `json:"selected_availability"`
	MaxPriceCents        int64          `json:"max_price_cents"`
	SelectedBuckets      []PriceBucket  `json:"selected_buckets,omitempty"`
}

// Cart is the authoritative snapshot returned by the cart service. The client
// never holds authoritative state; every local count is provisional until the
// next snapshot arrives.
type Cart struct {
	ItemCount  int64      `json:"item_count"`
	TotalPrice int64      `json:"total_price"`
	Items      []CartItem `json:"items"`
}

// CartItem is one line as the cart service reports it
type CartItem struct {
	VariantID    int64  `json:"variant_id"`
	Quantity     int    `json:"quantity"`
	Title        string `json:"title,omitempty"`
	ProductTitle string `json:"product_title,omitempty"`
	FinalPrice   int64  `json:"final_price,omitempty"`
}

// QuantityOf returns the quantity of the given variant already in the cart
func (c *Cart) QuantityOf(variantID int64) int {
	for _, item := range c.Items {
		if item.VariantID == variantID {
			return item.Quantity
		}
	}
	return 0
}

// CartLine addresses one row of the remote cart by its 1-based position,
// which the cart service assigns. MaxQuantity is the inventory bound attached
// to the rendered line; 0 means unbounded.
type CartLine struct {
	Index       int   `json:"line"`
	VariantID   int64 `json:"variant_id"`
	Quantity    int   `json:"quantity"`
	MaxQuantity int   `json:"max_quantity,omitempty"`
}

// Bounded reports whether the line carries an inventory ceiling
func (l CartLine) Bounded() bool {
	return l.MaxQuantity > 0
}

// VariantInventory is the inventory signal for one variant, from whichever
// source answered first (page data, bulk listing, or single-variant endpoint)
type VariantInventory struct {
	VariantID    int64          `json:"variant_id"`
	Quantity     int            `json:"inventory_quantity"`
	Policy       OversellPolicy `json:"inventory_policy"`
	Management   string         `json:"inventory_management"`
	Available    bool           `json:"available"`
	ProductTitle string         `json:"product_title,omitempty"`
}

// Tracked reports whether inventory tracking is enabled for the variant.
// Absence of a tracking signal means unlimited sales.
func (v VariantInventory) Tracked() bool {
	return v.Management != ""
}

// ChangeResult is the /cart/change.js response: the new snapshot plus the
// rendered section fragments requested alongside it
type ChangeResult struct {
	Cart     Cart
	Sections map[string]string
}
