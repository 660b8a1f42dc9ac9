package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/api/handlers"
	"github.com/tcgmx/storefront-core/internal/cart"
	"github.com/tcgmx/storefront-core/internal/config"
	"github.com/tcgmx/storefront-core/internal/filter"
	"github.com/tcgmx/storefront-core/internal/notify"
)

// Deps bundles the one engine and one synchronizer the composition root
// selected at startup. Exactly one implementation of each runs per process;
// nothing switches variants at runtime.
type Deps struct {
	Service  cart.CartService
	Sync     *cart.Synchronizer
	Engine   *filter.Engine
	Notifier *notify.Notifier
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Deps, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Storefront Core",
			"endpoints": []string{
				"GET /health",
				"GET /v1/cart",
				"POST /v1/cart/change",
				"POST /v1/cart/add",
				"POST /v1/collections/filter",
				"GET /v1/collections/filter/defaults",
				"GET /v1/notices",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := router.Group("/v1")
	{
		v1.GET("/cart", handlers.HandleGetCart(deps.Service, logger))
		v1.POST("/cart/change", handlers.HandleChangeQuantity(deps.Sync, logger))
		v1.POST("/cart/add", handlers.HandleAddToCart(deps.Sync, logger))

		v1.POST("/collections/filter", handlers.HandleApplyFilters(deps.Engine, deps.Notifier))
		v1.GET("/collections/filter/defaults", handlers.HandleClearFilters(deps.Engine))

		v1.GET("/notices", handlers.HandleListNotices(deps.Notifier))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
