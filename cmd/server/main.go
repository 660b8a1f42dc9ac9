package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/api"
	"github.com/tcgmx/storefront-core/internal/cart"
	"github.com/tcgmx/storefront-core/internal/config"
	"github.com/tcgmx/storefront-core/internal/filter"
	"github.com/tcgmx/storefront-core/internal/inventory"
	"github.com/tcgmx/storefront-core/internal/notify"
	"github.com/tcgmx/storefront-core/internal/shopify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting storefront core",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("shop_domain", cfg.Shop.Domain),
	)

	// Composition root: exactly one client, one filter engine and one
	// synchronizer are selected here from configuration
	client := shopify.NewClient(cfg.Shop.Domain, cfg.Shop.RequestTimeout, logger)

	notifier := notify.NewNotifier(cfg.Notify.DismissAfter, logger)

	engine := filter.NewEngine(filter.Config{
		TagMode:         cfg.Filter.TagMode,
		PriceMode:       cfg.Filter.PriceMode,
		EmptyState:      cfg.Filter.EmptyState,
		CatalogMaxCents: cfg.Filter.CatalogMaxCents,
		CatalogMinCents: cfg.Filter.CatalogMinCents,
	}, logger)

	resolver := inventory.NewResolver(client, inventory.Config{
		OversellMultiplier: cfg.Inventory.OversellMultiplier,
		OversellFloor:      cfg.Inventory.OversellFloor,
		ListingTTL:         cfg.Inventory.ListingTTL,
	}, logger)

	synchronizer := cart.NewSynchronizer(client, resolver, notifier, cart.Config{
		Sections:    cfg.Sync.Sections,
		SectionsURL: cfg.Sync.SectionsURL,
		GracePeriod: cfg.Sync.GracePeriod,
		BusyTimeout: cfg.Sync.BusyTimeout,
	}, logger)

	// Initialize router
	router := api.NewRouter(cfg, api.Deps{
		Service:  client,
		Sync:     synchronizer,
		Engine:   engine,
		Notifier: notifier,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
