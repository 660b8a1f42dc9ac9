package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/domain"
	"github.com/tcgmx/storefront-core/pkg/errors"
)

// StorefrontAPI is the slice of the storefront client the resolver needs
type StorefrontAPI interface {
	ListVariantInventory(ctx context.Context) (map[int64]domain.VariantInventory, error)
	GetVariant(ctx context.Context, variantID int64) (*domain.VariantInventory, error)
}

// Config tunes the oversell window for the "continue" policy
type Config struct {
	OversellMultiplier int
	OversellFloor      int
	ListingTTL         time.Duration
}

// Resolver answers "how many units of this variant can still be sold" from
// the cheapest source that knows: inventory data embedded in the rendered
// page first, then the bulk product listing, then the single-variant
// endpoint. Each fallback runs only after the previous source failed.
type Resolver struct {
	api    StorefrontAPI
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	pageData  map[int64]domain.VariantInventory
	listing   map[int64]domain.VariantInventory
	fetchedAt time.Time
	now       func() time.Time
}

// Verdict is the outcome of validating an add-to-cart intent
type Verdict struct {
	Allowed   bool   `json:"allowed"`
	Warning   string `json:"warning,omitempty"`
	Message   string `json:"message,omitempty"`
	Remaining int    `json:"remaining"`
}

// NewResolver creates an inventory resolver. Multiplier and floor default to
// the storefront's 2x / 3-unit oversell window.
func NewResolver(api StorefrontAPI, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OversellMultiplier <= 0 {
		cfg.OversellMultiplier = 2
	}
	if cfg.OversellFloor <= 0 {
		cfg.OversellFloor = 3
	}
	if cfg.ListingTTL <= 0 {
		cfg.ListingTTL = 5 * time.Minute
	}
	return &Resolver{
		api:      api,
		cfg:      cfg,
		logger:   logger,
		pageData: make(map[int64]domain.VariantInventory),
		now:      time.Now,
	}
}

// SetPageData installs the inventory data the host page embedded at render
// time. It is the preferred source: no network, server-side numbers.
func (r *Resolver) SetPageData(data map[int64]domain.VariantInventory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageData = make(map[int64]domain.VariantInventory, len(data))
	for id, entry := range data {
		r.pageData[id] = entry
	}
}

// Resolve finds the inventory signal for one variant. The first source that
// yields a number is authoritative. When every source fails the caller gets
// ErrStaleData and must fail open (treat the variant as unlimited).
func (r *Resolver) Resolve(ctx context.Context, variantID int64) (*domain.VariantInventory, error) {
	r.mu.Lock()
	entry, ok := r.pageData[variantID]
	r.mu.Unlock()
	if ok {
		r.logger.Debug("Inventory resolved from page data", zap.Int64("variant_id", variantID))
		return &entry, nil
	}

	if inv, err := r.resolveFromListing(ctx, variantID); err == nil {
		return inv, nil
	} else {
		r.logger.Warn("Bulk listing lookup failed, falling back to variant endpoint",
			zap.Int64("variant_id", variantID),
			zap.Error(err),
		)
	}

	inv, err := r.api.GetVariant(ctx, variantID)
	if err != nil {
		return nil, &errors.ErrStaleData{Source: "variant endpoint", Cause: err}
	}
	return inv, nil
}

func (r *Resolver) resolveFromListing(ctx context.Context, variantID int64) (*domain.VariantInventory, error) {
	r.mu.Lock()
	listing := r.listing
	fresh := listing != nil && r.now().Sub(r.fetchedAt) < r.cfg.ListingTTL
	r.mu.Unlock()

	if !fresh {
		fetched, err := r.api.ListVariantInventory(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.listing = fetched
		r.fetchedAt = r.now()
		listing = fetched
		r.mu.Unlock()
	}

	entry, ok := listing[variantID]
	if !ok {
		return nil, fmt.Errorf("variant %d not present in product listing", variantID)
	}
	return &entry, nil
}

// ValidateAdd decides whether adding requested units of a variant on top of
// what the cart already holds should go through. Missing inventory data never
// blocks the sale.
func (r *Resolver) ValidateAdd(ctx context.Context, variantID int64, requested, inCart int) Verdict {
	inv, err := r.Resolve(ctx, variantID)
	if err != nil {
		r.logger.Warn("No inventory source answered, allowing sale",
			zap.Int64("variant_id", variantID),
			zap.Error(err),
		)
		return Verdict{Allowed: true, Remaining: requested}
	}

	if !inv.Tracked() {
		return Verdict{Allowed: true, Remaining: requested}
	}

	title := inv.ProductTitle
	if title == "" {
		title = "Producto"
	}
	total := inCart + requested

	if inv.Policy == domain.OversellDeny {
		if total <= inv.Quantity {
			return Verdict{Allowed: true, Remaining: inv.Quantity - total}
		}
		remaining := inv.Quantity - inCart
		if remaining < 0 {
			remaining = 0
		}
		verdict := Verdict{Remaining: remaining}
		switch {
		case inv.Quantity == 0:
			verdict.Message = fmt.Sprintf("%q no tiene stock disponible.", title)
		case remaining == 0:
			verdict.Message = fmt.Sprintf("Ya tienes la cantidad máxima disponible de %q en tu carrito.", title)
		default:
			verdict.Message = fmt.Sprintf("Solo puedes añadir %d unidad(es) más de %q. Stock disponible: %d, en carrito: %d",
				remaining, title, inv.Quantity, inCart)
		}
		return verdict
	}

	// Continue policy: zero stock still sells (backorder), above-stock sells
	// inside a bounded window with a warning
	if inv.Quantity == 0 || total <= inv.Quantity {
		return Verdict{Allowed: true, Remaining: requested}
	}

	ceiling := inv.Quantity * r.cfg.OversellMultiplier
	if ceiling < r.cfg.OversellFloor {
		ceiling = r.cfg.OversellFloor
	}
	if total > ceiling {
		remaining := ceiling - inCart
		if remaining < 0 {
			remaining = 0
		}
		return Verdict{
			Message: fmt.Sprintf("Stock limitado de %q. Solo %d unidades disponibles. Máximo %d unidades por cliente. Actualmente tienes %d en tu carrito.",
				title, inv.Quantity, ceiling, inCart),
			Remaining: remaining,
		}
	}
	return Verdict{
		Allowed: true,
		Warning: fmt.Sprintf("Stock limitado: Solo %d unidades de %q disponibles. Tu pedido se procesará por orden de llegada.",
			inv.Quantity, title),
		Remaining: requested,
	}
}
