package filter

import (
	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/domain"
)

// Config describes which filter axes a collection page uses. One engine is
// instantiated per collection from page-supplied configuration, replacing the
// old per-collection script copies.
type Config struct {
	TagMode         domain.TagMatchMode
	PriceMode       domain.PriceFilterMode
	EmptyState      domain.EmptyStatePolicy
	CatalogMaxCents int64
	CatalogMinCents int64
}

// Engine evaluates filter criteria against the cards of one collection grid.
// Evaluation is synchronous and touches no network.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// Result is the outcome of one evaluation pass
type Result struct {
	ShownCount        int    `json:"shown_count"`
	ActiveFilterCount int    `json:"active_filter_count"`
	Visibility        []bool `json:"visibility"`
	ShowEmptyState    bool   `json:"show_empty_state"`
}

// NewEngine creates a filter engine for one collection. Zero-value config
// fields fall back to the defaults the storefront ships with: ALL-match tags,
// ceiling price filter, empty state only when filters are active.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.TagMode.IsValid() {
		cfg.TagMode = domain.TagMatchAll
	}
	if !cfg.PriceMode.IsValid() {
		cfg.PriceMode = domain.PriceFilterCeiling
	}
	if !cfg.EmptyState.IsValid() {
		cfg.EmptyState = domain.EmptyStateWhenFiltered
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Apply computes visibility for every card under the given criteria
func (e *Engine) Apply(criteria domain.FilterCriteria, cards []domain.ProductCard) Result {
	result := Result{Visibility: make([]bool, len(cards))}

	for i, card := range cards {
		visible := e.matches(criteria, card)
		result.Visibility[i] = visible
		if visible {
			result.ShownCount++
		}
	}

	result.ActiveFilterCount = e.ActiveFilterCount(criteria)
	switch e.cfg.EmptyState {
	case domain.EmptyStateWhenZero:
		result.ShowEmptyState = result.ShownCount == 0
	default:
		result.ShowEmptyState = result.ShownCount == 0 && result.ActiveFilterCount > 0
	}

	e.logger.Debug("Filters applied",
		zap.Int("shown", result.ShownCount),
		zap.Int("total", len(cards)),
		zap.Int("active_filters", result.ActiveFilterCount),
	)
	return result
}

func (e *Engine) matches(criteria domain.FilterCriteria, card domain.ProductCard) bool {
	return e.tagsMatch(criteria, card) &&
		e.availabilityMatches(criteria, card) &&
		e.priceMatches(criteria, card)
}

func (e *Engine) tagsMatch(criteria domain.FilterCriteria, card domain.ProductCard) bool {
	if len(criteria.SelectedTags) == 0 {
		return true
	}
	if e.cfg.TagMode == domain.TagMatchAny {
		for _, tag := range criteria.SelectedTags {
			if card.HasTag(tag) {
				return true
			}
		}
		return false
	}
	for _, tag := range criteria.SelectedTags {
		if !card.HasTag(tag) {
			return false
		}
	}
	return true
}

func (e *Engine) availabilityMatches(criteria domain.FilterCriteria, card domain.ProductCard) bool {
	if len(criteria.SelectedAvailability) == 0 {
		return true
	}
	for _, a := range criteria.SelectedAvailability {
		if a == card.Available {
			return true
		}
	}
	return false
}

func (e *Engine) priceMatches(criteria domain.FilterCriteria, card domain.ProductCard) bool {
	if e.cfg.PriceMode == domain.PriceFilterBuckets {
		if len(criteria.SelectedBuckets) == 0 {
			return true
		}
		if !card.PriceKnown {
			return false
		}
		for _, bucket := range criteria.SelectedBuckets {
			if bucket.Contains(card.PriceCents) {
				return true
			}
		}
		return false
	}

	if criteria.MaxPriceCents >= e.cfg.CatalogMaxCents {
		// Ceiling at the catalog maximum is the permissive default
		return true
	}
	if !card.PriceKnown {
		return false
	}
	return card.PriceCents >= e.cfg.CatalogMinCents && card.PriceCents <= criteria.MaxPriceCents
}

// ActiveFilterCount counts non-default criteria: each selected tag, each
// selected availability value, each selected bucket, and at most 1 for a
// price ceiling below the catalog maximum.
func (e *Engine) ActiveFilterCount(criteria domain.FilterCriteria) int {
	count := len(criteria.SelectedTags) + len(criteria.SelectedAvailability)
	if e.cfg.PriceMode == domain.PriceFilterBuckets {
		return count + len(criteria.SelectedBuckets)
	}
	if criteria.MaxPriceCents < e.cfg.CatalogMaxCents {
		count++
	}
	return count
}

// Clear returns the default criteria for this collection: empty selections
// and the price ceiling back at the catalog maximum. Idempotent.
func (e *Engine) Clear() domain.FilterCriteria {
	return domain.FilterCriteria{MaxPriceCents: e.cfg.CatalogMaxCents}
}
