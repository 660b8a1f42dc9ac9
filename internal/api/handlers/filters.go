package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tcgmx/storefront-core/internal/domain"
	"github.com/tcgmx/storefront-core/internal/filter"
	"github.com/tcgmx/storefront-core/internal/notify"
)

// CardPayload is one product tile as the page serializes its data
// attributes: tags comma-separated, price in raw cents. Malformed prices are
// tolerated, matching how the grid markup behaves.
type CardPayload struct {
	Handle    string `json:"handle"`
	Tags      string `json:"tags"`
	Available string `json:"available"`
	Price     string `json:"price"`
}

// ApplyFiltersRequest carries the grid and the current criteria. A nil
// criteria means "cleared": everything shows.
type ApplyFiltersRequest struct {
	Cards    []CardPayload          `json:"cards" binding:"required"`
	Criteria *domain.FilterCriteria `json:"criteria"`
}

func HandleApplyFilters(engine *filter.Engine, notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApplyFiltersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		cards := make([]domain.ProductCard, len(req.Cards))
		for i, payload := range req.Cards {
			cards[i] = domain.ParseProductCard(payload.Handle, payload.Tags, payload.Available, payload.Price)
		}

		criteria := engine.Clear()
		if req.Criteria != nil {
			supplied := *req.Criteria
			if supplied.MaxPriceCents <= 0 {
				// An omitted ceiling means the price axis is inactive, not
				// a ceiling of zero
				supplied.MaxPriceCents = criteria.MaxPriceCents
			}
			criteria = supplied
		}

		result := engine.Apply(criteria, cards)
		notifier.Publish(notify.Event{
			Kind:              notify.EventFiltersApplied,
			ShownCount:        result.ShownCount,
			ActiveFilterCount: result.ActiveFilterCount,
		})

		c.JSON(http.StatusOK, result)
	}
}

// HandleClearFilters returns the default criteria for the collection so the
// page can reset its controls
func HandleClearFilters(engine *filter.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Clear())
	}
}

func HandleListNotices(notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notices": notifier.ActiveNotices()})
	}
}
