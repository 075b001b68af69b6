// Command seed fills the configured document store with an admin account and
// a generated product catalog.
//
//	go run ./cmd/seed -products 200 -reset
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	var opts app.SeedOptions
	flag.IntVar(&opts.Products, "products", 100, "number of products to create")
	flag.StringVar(&opts.AdminName, "admin-name", "Store Admin", "admin display name")
	flag.StringVar(&opts.AdminEmail, "admin-email", "admin@storefront.local", "admin email")
	flag.StringVar(&opts.AdminPassword, "admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password (default $SEED_ADMIN_PASSWORD)")
	flag.BoolVar(&opts.Reset, "reset", false, "delete all products first")
	flag.Int64Var(&opts.RandSeed, "rand-seed", 42, "seed for the catalog generator")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	if opts.AdminPassword == "" {
		log.Error("admin password is required, set -admin-password or SEED_ADMIN_PASSWORD")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := app.Seed(ctx, cfg, log, opts); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
