package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/cart"
	"github.com/tcgmx/storefront-core/internal/domain"
	"github.com/tcgmx/storefront-core/pkg/errors"
)

// ChangeQuantityRequest carries one quantity-change intent from the page.
// CurrentQuantity is the value shown before the edit; it is what the UI rolls
// back to when validation fails.
type ChangeQuantityRequest struct {
	Line            int  `json:"line" binding:"required,min=1"`
	Quantity        *int `json:"quantity" binding:"required"`
	CurrentQuantity int  `json:"current_quantity" binding:"min=0"`
	MaxQuantity     int  `json:"max_quantity" binding:"min=0"`
}

// AddToCartRequest mirrors the add-to-cart form payload
type AddToCartRequest struct {
	VariantID int64 `json:"variant_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func HandleGetCart(service cart.CartService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := service.GetCart(c.Request.Context())
		if err != nil {
			logger.Error("Failed to fetch cart", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch cart"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func HandleChangeQuantity(sync *cart.Synchronizer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangeQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		line := domain.CartLine{
			Index:       req.Line,
			Quantity:    req.CurrentQuantity,
			MaxQuantity: req.MaxQuantity,
		}
		snapshot, err := sync.RequestQuantityChange(c.Request.Context(), line, *req.Quantity)
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func HandleAddToCart(sync *cart.Synchronizer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		snapshot, err := sync.AddToCart(c.Request.Context(), req.VariantID, req.Quantity)
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

// respondCartError maps the error taxonomy onto HTTP statuses. Validation
// failures ship the rollback value so the UI can restore the prior quantity.
func respondCartError(c *gin.Context, logger *zap.Logger, err error) {
	switch e := err.(type) {
	case *errors.ErrValidation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          e.Error(),
			"rollback_value": e.RollbackValue,
			"remaining":      e.Remaining,
		})
	case *errors.ErrBusy:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrStaleData:
		logger.Warn("Cart state unconfirmed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "cart state could not be confirmed"})
	case *errors.ErrTransport:
		logger.Error("Cart service call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "cart service unavailable"})
	default:
		logger.Error("Unexpected cart error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
