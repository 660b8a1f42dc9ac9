package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/domain"
)

// GetCart fetches the current cart snapshot via GET /cart.js
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	data, err := c.do(ctx, http.MethodGet, "/cart.js", nil, "")
	if err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return &cart, nil
}

// AddToCart posts one variant to /cart/add.js with a form-encoded body, the
// same shape an add-to-cart form submit produces
func (c *Client) AddToCart(ctx context.Context, variantID int64, quantity int) (*domain.CartItem, error) {
	form := url.Values{}
	form.Set("id", fmt.Sprintf("%d", variantID))
	form.Set("quantity", fmt.Sprintf("%d", quantity))

	data, err := c.do(ctx, http.MethodPost, "/cart/add.js",
		bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	var item domain.CartItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal added line: %w", err)
	}

	c.logger.Info("Variant added to cart",
		zap.Int64("variant_id", variantID),
		zap.Int("quantity", quantity),
	)
	return &item, nil
}

type changeRequest struct {
	Line        int      `json:"line"`
	Quantity    int      `json:"quantity"`
	Sections    []string `json:"sections,omitempty"`
	SectionsURL string   `json:"sections_url,omitempty"`
}

type changeResponse struct {
	domain.Cart
	Sections map[string]string `json:"sections"`
}

// ChangeLine updates the quantity of one 1-based cart line via
// POST /cart/change.js. Quantity 0 removes the line. The rendered section
// fragments named in sections come back with the snapshot, saving a second
// round trip.
func (c *Client) ChangeLine(ctx context.Context, line, quantity int, sections []string, sectionsURL string) (*domain.ChangeResult, error) {
	payload, err := json.Marshal(changeRequest{
		Line:        line,
		Quantity:    quantity,
		Sections:    sections,
		SectionsURL: sectionsURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/cart/change.js",
		bytes.NewBuffer(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var resp changeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change response: %w", err)
	}

	c.logger.Info("Cart line changed",
		zap.Int("line", line),
		zap.Int("quantity", quantity),
		zap.Int64("item_count", resp.ItemCount),
	)
	return &domain.ChangeResult{Cart: resp.Cart, Sections: resp.Sections}, nil
}
