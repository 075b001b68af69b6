package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/storage/local"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// SeedOptions controls Seed.
type SeedOptions struct {
	Products      int
	AdminName     string
	AdminEmail    string
	AdminPassword string

	// Reset deletes every product before seeding.
	Reset bool
	// RandSeed makes the generated catalog reproducible.
	RandSeed int64
}

// Seed populates the configured document store with an admin account and a
// generated catalog. It does not publish events.
func Seed(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts SeedOptions) error {
	st, err := openStores(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}
	defer st.close()

	assets, err := local.New(cfg.Assets)
	if err != nil {
		return fmt.Errorf("init asset storage: %w", err)
	}

	events := event.NewProducer(nil, logger)
	products := service.NewProductService(st.products, nil, assets, events, nil, cfg.CatalogPageSize, logger)
	users := service.NewUserService(st.users,
		auth.NewPasswordHasher(cfg.BcryptCost),
		auth.NewSessionManager(cfg.JWTSecret, cfg.JWTExpire),
		mail.NewLogSender(logger), assets, events, nil, logger)

	return seed(ctx, products, users, opts, logger)
}

func seed(ctx context.Context, products *service.ProductService, users *service.UserService, opts SeedOptions, logger *slog.Logger) error {
	admin, err := ensureAdmin(ctx, users, opts)
	if err != nil {
		return err
	}
	logger.Info("admin account ready", slog.String("user_id", admin.ID), slog.String("email", admin.Email))

	if opts.Reset {
		n, err := products.DeleteAllProducts(ctx)
		if err != nil {
			return fmt.Errorf("reset products: %w", err)
		}
		logger.Info("removed existing products", slog.Int64("count", n))
	}

	rng := rand.New(rand.NewSource(opts.RandSeed))
	for i, input := range generateProducts(rng, opts.Products) {
		if _, err := products.CreateProduct(ctx, input, admin.ID); err != nil {
			return fmt.Errorf("create product %d: %w", i, err)
		}
	}
	logger.Info("catalog seeded", slog.Int("products", opts.Products))
	return nil
}

// ensureAdmin registers the admin account if needed and grants it the admin
// role.
func ensureAdmin(ctx context.Context, users *service.UserService, opts SeedOptions) (*domain.User, error) {
	res, err := users.Register(ctx, service.RegisterInput{
		Name:     opts.AdminName,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
	})
	var user *domain.User
	switch {
	case err == nil:
		user = res.User
	case errors.Is(err, apperrors.ErrAlreadyExists):
		res, err := users.Login(ctx, service.LoginInput{Email: opts.AdminEmail, Password: opts.AdminPassword})
		if err != nil {
			return nil, fmt.Errorf("sign in existing admin: %w", err)
		}
		user = res.User
	default:
		return nil, fmt.Errorf("register admin: %w", err)
	}

	if user.HasRole(domain.RoleAdmin) {
		return user, nil
	}
	role := domain.RoleAdmin
	return users.UpdateUser(ctx, user.ID, service.UpdateUserInput{Role: &role})
}

type catalogLine struct {
	category   string
	nouns      []string
	minPrice   float64
	priceRange float64
}

var catalogLines = []catalogLine{
	{"Laptops", []string{"Ultrabook", "Gaming Laptop", "Chromebook", "Workstation"}, 399, 2600},
	{"Footwear", []string{"Running Shoes", "Sneakers", "Hiking Boots", "Loafers"}, 25, 180},
	{"Bottom", []string{"Jeans", "Chinos", "Joggers", "Shorts"}, 15, 90},
	{"Tops", []string{"T-Shirt", "Hoodie", "Polo", "Sweater"}, 10, 80},
	{"Attire", []string{"Blazer", "Suit", "Dress", "Overcoat"}, 60, 400},
	{"Camera", []string{"Mirrorless Camera", "Action Cam", "Instant Camera", "DSLR"}, 120, 2200},
	{"SmartPhones", []string{"Smartphone", "Foldable Phone", "Rugged Phone", "Mini Phone"}, 150, 1300},
}

var adjectives = []string{"Classic", "Pro", "Lite", "Urban", "Eco", "Prime", "Nova", "Aero", "Vivid", "Core"}

// generateProducts builds n valid product inputs. Names stay unique within a
// run so each gets a readable slug.
func generateProducts(rng *rand.Rand, n int) []service.CreateProductInput {
	out := make([]service.CreateProductInput, 0, n)
	for i := 0; i < n; i++ {
		line := catalogLines[rng.Intn(len(catalogLines))]
		noun := line.nouns[rng.Intn(len(line.nouns))]
		adj := adjectives[rng.Intn(len(adjectives))]
		price := line.minPrice + float64(rng.Intn(int(line.priceRange*100)))/100

		out = append(out, service.CreateProductInput{
			Name:        fmt.Sprintf("%s %s %d", adj, noun, i+1),
			Price:       price,
			Description: fmt.Sprintf("%s %s from our %s range.", adj, noun, line.category),
			Stock:       int64(rng.Intn(200)),
			Category:    line.category,
		})
	}
	return out
}
