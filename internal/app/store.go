package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/docstore/memory"
	docmongo "github.com/utafrali/storefront/internal/docstore/mongo"
	docpg "github.com/utafrali/storefront/internal/docstore/postgres"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
)

// Collection names, shared by every backend.
const (
	productsCollection = "products"
	ordersCollection   = "orders"
	usersCollection    = "users"
)

// stores holds the document collections of the configured backend.
type stores struct {
	products docstore.Collection[domain.Product]
	orders   docstore.Collection[domain.Order]
	users    docstore.Collection[domain.User]

	// ping is nil for the in-memory backend.
	ping  health.Checker
	close func()
}

func openStores(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*stores, error) {
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	switch cfg.StoreDriver {
	case config.StoreMongo:
		return openMongo(ctx, cfg, logger)
	case config.StorePostgres:
		return openPostgres(ctx, cfg, reg, logger)
	case config.StoreMemory:
		logger.Warn("using in-memory document store, data is lost on restart")
		return &stores{
			products: memory.New[domain.Product](productsCollection, "slug"),
			orders:   memory.New[domain.Order](ordersCollection),
			users:    memory.New[domain.User](usersCollection, "email"),
			close:    func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openMongo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	client, err := database.NewMongoClient(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	logger.Info("connected to MongoDB", slog.String("database", cfg.Mongo.Database))

	db := client.Database(cfg.Mongo.Database)
	products := docmongo.New[domain.Product](db.Collection(productsCollection))
	users := docmongo.New[domain.User](db.Collection(usersCollection))

	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Error("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	if err := products.EnsureUnique(ctx, "slug"); err != nil {
		disconnect()
		return nil, fmt.Errorf("ensure product indexes: %w", err)
	}
	if err := users.EnsureUnique(ctx, "email"); err != nil {
		disconnect()
		return nil, fmt.Errorf("ensure user indexes: %w", err)
	}

	return &stores{
		products: products,
		orders:   docmongo.New[domain.Order](db.Collection(ordersCollection)),
		users:    users,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: disconnect,
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*stores, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.DBName),
	)

	if err := database.RegisterPoolMetrics(reg, pool, serviceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	if err := docpg.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	products, err := docpg.New[domain.Product](pool, productsCollection)
	if err != nil {
		pool.Close()
		return nil, err
	}
	orders, err := docpg.New[domain.Order](pool, ordersCollection)
	if err != nil {
		pool.Close()
		return nil, err
	}
	users, err := docpg.New[domain.User](pool, usersCollection)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		products: products,
		orders:   orders,
		users:    users,
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}
