package app

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/docstore/memory"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/service"
	storagemem "github.com/utafrali/storefront/internal/storage/memory"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

func TestGenerateProducts_ValidAndReproducible(t *testing.T) {
	a := generateProducts(rand.New(rand.NewSource(7)), 50)
	b := generateProducts(rand.New(rand.NewSource(7)), 50)

	require.Len(t, a, 50)
	assert.Equal(t, a, b)

	names := make(map[string]bool, len(a))
	for _, p := range a {
		assert.NoError(t, validator.Validate(domain.Product{
			ID:          "x",
			Name:        p.Name,
			Price:       p.Price,
			Description: p.Description,
			Stock:       p.Stock,
			Category:    p.Category,
		}), p.Name)
		assert.False(t, names[p.Name], "duplicate name %q", p.Name)
		names[p.Name] = true
	}
}

func TestSeed_CreatesAdminAndCatalog(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()
	products := memory.New[domain.Product]("products", "slug")
	users := memory.New[domain.User]("users", "email")
	assets := storagemem.New("")

	productSvc := service.NewProductService(products, nil, assets, nil, nil, 4, log)
	userSvc := service.NewUserService(users,
		auth.NewPasswordHasher(bcrypt.MinCost),
		auth.NewSessionManager("seed-secret", time.Hour),
		mail.NewLogSender(log), assets, nil, nil, log)

	opts := SeedOptions{
		Products:      12,
		AdminName:     "Store Admin",
		AdminEmail:    "admin@storefront.local",
		AdminPassword: "password123",
		RandSeed:      42,
	}
	require.NoError(t, seed(ctx, productSvc, userSvc, opts, log))

	admin, err := users.FindOne(ctx, docstore.Filter{docstore.Eq("email", "admin@storefront.local")})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	n, err := products.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)

	// A second run reuses the admin and replaces the catalog.
	opts.Reset = true
	opts.Products = 3
	require.NoError(t, seed(ctx, productSvc, userSvc, opts, log))

	n, err = users.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = products.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
