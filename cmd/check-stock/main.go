package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/inventory"
	"github.com/tcgmx/storefront-core/internal/shopify"
)

// Diagnostic tool: runs the inventory resolution chain for one variant and
// prints what the storefront knows about it.
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	variantID := flag.Int64("variant", 0, "variant ID to check")
	requested := flag.Int("quantity", 1, "units to validate against the oversell policy")
	inCart := flag.Int("in-cart", 0, "units of the variant already in the cart")
	flag.Parse()

	if *variantID == 0 {
		fmt.Fprintln(os.Stderr, "usage: check-stock -variant <id> [-quantity N] [-in-cart N]")
		os.Exit(1)
	}

	shopDomain := os.Getenv("SHOP_DOMAIN")
	if shopDomain == "" {
		log.Fatal("SHOP_DOMAIN is required")
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := shopify.NewClient(shopDomain, 30*time.Second, logger)
	resolver := inventory.NewResolver(client, inventory.Config{}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inv, err := resolver.Resolve(ctx, *variantID)
	if err != nil {
		fmt.Printf("No inventory source answered (%v); the variant sells as unlimited\n", err)
		return
	}

	fmt.Printf("Variant:    %d\n", inv.VariantID)
	if inv.ProductTitle != "" {
		fmt.Printf("Product:    %s\n", inv.ProductTitle)
	}
	fmt.Printf("Tracked:    %v\n", inv.Tracked())
	fmt.Printf("Stock:      %d\n", inv.Quantity)
	fmt.Printf("Policy:     %s\n", inv.Policy)
	fmt.Printf("Available:  %v\n", inv.Available)

	verdict := resolver.ValidateAdd(ctx, *variantID, *requested, *inCart)
	fmt.Printf("\nAdding %d (with %d in cart): allowed=%v remaining=%d\n",
		*requested, *inCart, verdict.Allowed, verdict.Remaining)
	if verdict.Warning != "" {
		fmt.Printf("Warning: %s\n", verdict.Warning)
	}
	if verdict.Message != "" {
		fmt.Printf("Message: %s\n", verdict.Message)
	}
}
