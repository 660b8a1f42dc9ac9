package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tcgmx/storefront-core/internal/domain"
	"github.com/tcgmx/storefront-core/pkg/errors"
)

type productListing struct {
	Products []struct {
		Title    string `json:"title"`
		Variants []struct {
			ID                  int64   `json:"id"`
			InventoryQuantity   *int    `json:"inventory_quantity"`
			InventoryPolicy     string  `json:"inventory_policy"`
			InventoryManagement *string `json:"inventory_management"`
			Available           bool    `json:"available"`
		} `json:"variants"`
	} `json:"products"`
}

// ListVariantInventory fetches the bulk product listing and flattens it into a
// variant ID keyed inventory map. This is the first network fallback when the
// page carries no embedded inventory data.
func (c *Client) ListVariantInventory(ctx context.Context) (map[int64]domain.VariantInventory, error) {
	data, err := c.do(ctx, http.MethodGet, "/products.json", nil, "")
	if err != nil {
		return nil, err
	}

	var listing productListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, &errors.ErrStaleData{Source: "products.json", Cause: err}
	}

	inventory := make(map[int64]domain.VariantInventory)
	for _, product := range listing.Products {
		for _, v := range product.Variants {
			entry := domain.VariantInventory{
				VariantID:    v.ID,
				Policy:       domain.OversellPolicy(v.InventoryPolicy),
				Available:    v.Available,
				ProductTitle: product.Title,
			}
			if v.InventoryQuantity != nil {
				entry.Quantity = *v.InventoryQuantity
			}
			if v.InventoryManagement != nil {
				entry.Management = *v.InventoryManagement
			}
			inventory[v.ID] = entry
		}
	}
	return inventory, nil
}

// GetVariant fetches a single variant via /variants/{id}.js, the last-resort
// inventory source. The endpoint usually omits inventory fields, so callers
// must be prepared for an untracked answer.
func (c *Client) GetVariant(ctx context.Context, variantID int64) (*domain.VariantInventory, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/variants/%d.js", variantID), nil, "")
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID                  int64   `json:"id"`
		InventoryQuantity   *int    `json:"inventory_quantity"`
		InventoryPolicy     string  `json:"inventory_policy"`
		InventoryManagement *string `json:"inventory_management"`
		Available           bool    `json:"available"`
		ProductTitle        string  `json:"product_title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &errors.ErrStaleData{Source: "variants.js", Cause: err}
	}

	entry := domain.VariantInventory{
		VariantID:    raw.ID,
		Policy:       domain.OversellPolicy(raw.InventoryPolicy),
		Available:    raw.Available,
		ProductTitle: raw.ProductTitle,
	}
	if raw.InventoryQuantity != nil {
		entry.Quantity = *raw.InventoryQuantity
	}
	if raw.InventoryManagement != nil {
		entry.Management = *raw.InventoryManagement
	}
	return &entry, nil
}
