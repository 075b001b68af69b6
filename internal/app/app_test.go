package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/storage/local"
	"github.com/utafrali/storefront/pkg/logger"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:      "development",
		HTTPPort:         0,
		StoreDriver:      config.StoreMemory,
		JWTSecret:        "app-test-secret",
		JWTExpire:        time.Hour,
		CookieExpireDays: 1,
		BcryptCost:       4,
		CatalogPageSize:  4,
		ProductCacheTTL:  time.Minute,
		RateLimitRPS:     100,
		RateLimitBurst:   100,
		Assets:           local.Config{Dir: t.TempDir(), BaseURL: "/assets"},
	}
}

func TestNewApp_MemoryStore(t *testing.T) {
	a, err := NewApp(memoryConfig(t), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	body := `{"name":"Jane Doe","email":"jane@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreDriver = "sqlite"

	_, err := NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}
