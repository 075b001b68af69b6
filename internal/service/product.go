package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/slug"
	"github.com/utafrali/storefront/pkg/validator"
)

// ProductService manages the catalog.
type ProductService struct {
	products docstore.Collection[domain.Product]
	listing  *catalog.Pipeline[domain.Product]
	cache    ProductCache
	assets   storage.Storage
	events   *event.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewProductService creates a product service. cache may be nil.
func NewProductService(
	products docstore.Collection[domain.Product],
	cache ProductCache,
	assets storage.Storage,
	events *event.Producer,
	m *metrics.Metrics,
	pageSize int,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		listing:  catalog.NewPipeline(products, catalog.ProductSchema, pageSize),
		cache:    cache,
		assets:   assets,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateProductInput holds the fields of a new product.
type CreateProductInput struct {
	Name        string         `json:"name"`
	Price       float64        `json:"price"`
	Description string         `json:"description"`
	Stock       int64          `json:"stock"`
	Category    string         `json:"category"`
	Images      []domain.Image `json:"images"`
}

// UpdateProductInput holds the fields to change. Nil fields are left alone.
type UpdateProductInput struct {
	Name        *string         `json:"name"`
	Price       *float64        `json:"price"`
	Description *string         `json:"description"`
	Stock       *int64          `json:"stock"`
	Category    *string         `json:"category"`
	Images      *[]domain.Image `json:"images"`
}

func (in UpdateProductInput) patch() docstore.Patch {
	p := docstore.Patch{}
	if in.Name != nil {
		p["name"] = *in.Name
	}
	if in.Price != nil {
		p["price"] = *in.Price
	}
	if in.Description != nil {
		p["description"] = *in.Description
	}
	if in.Stock != nil {
		p["stock"] = *in.Stock
	}
	if in.Category != nil {
		p["category"] = *in.Category
	}
	if in.Images != nil {
		p["images"] = *in.Images
	}
	return p
}

// CreateProduct validates and stores a new product owned by ownerID.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput, ownerID string) (*domain.Product, error) {
	id := uuid.NewString()
	product := &domain.Product{
		ID:          id,
		Name:        input.Name,
		Slug:        slug.WithSuffix(input.Name, id),
		Price:       input.Price,
		Description: input.Description,
		Stock:       input.Stock,
		Category:    input.Category,
		Images:      input.Images,
		Reviews:     []domain.Review{},
		UserID:      ownerID,
		CreatedAt:   s.now().UTC(),
		Version:     1,
	}
	if product.Images == nil {
		product.Images = []domain.Image{}
	}
	if err := validator.Validate(product); err != nil {
		return nil, err
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	logPublishError(ctx, s.logger, event.TopicProductCreated, product.ID,
		s.events.PublishProductCreated(ctx, product))

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

// GetProduct returns the product with the given id or slug.
func (s *ProductService) GetProduct(ctx context.Context, key string) (*domain.Product, error) {
	if s.cache != nil {
		p, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.CacheLookup("error")
			s.logger.WarnContext(ctx, "product cache read failed", slog.String("error", err.Error()))
		case ok:
			s.metrics.CacheLookup("hit")
			return p, nil
		default:
			s.metrics.CacheLookup("miss")
		}
	}

	p, err := s.products.FindByID(ctx, key)
	if err != nil && isNotFound(err) {
		p, err = s.products.FindOne(ctx, docstore.Filter{docstore.Eq("slug", key)})
	}
	if err != nil {
		return nil, lookupError(err, "product", key)
	}

	s.cacheSet(ctx, p)
	return p, nil
}

// ListProducts runs the catalog query pipeline over params.
func (s *ProductService) ListProducts(ctx context.Context, params map[string]string) (*catalog.Result[domain.Product], error) {
	res, err := s.listing.Run(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	s.metrics.CatalogQuery(res.Count)
	return res, nil
}

// UpdateProduct applies input to product id. Only the changed fields are
// validated.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input UpdateProductInput) (*domain.Product, error) {
	patch := input.patch()
	if len(patch) == 0 {
		return nil, apperrors.InvalidInput("nothing to update")
	}

	var before, after *domain.Product
	err := withVersionRetry(ctx, s.metrics, "product.update", func() error {
		current, err := s.products.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "product", id)
		}
		if input.Name != nil {
			patch["slug"] = slug.WithSuffix(*input.Name, id)
		}
		updated, err := s.products.UpdateByID(ctx, id, patch, docstore.UpdateOptions{
			Validate:  true,
			IfVersion: current.Version,
		})
		if err != nil {
			return err
		}
		before, after = current, updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.cacheInvalidate(ctx, before)
	s.cacheInvalidate(ctx, after)
	logPublishError(ctx, s.logger, event.TopicProductUpdated, id,
		s.events.PublishProductUpdated(ctx, after))

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id))
	return after, nil
}

// DeleteProduct removes a product and its uploaded images.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "product", id)
	}
	if err := s.products.DeleteByID(ctx, id); err != nil {
		return lookupError(err, "product", id)
	}

	for _, img := range p.Images {
		if err := s.assets.Delete(ctx, img.PublicID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete product image",
				slog.String("product_id", id),
				slog.String("public_id", img.PublicID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.cacheInvalidate(ctx, p)
	logPublishError(ctx, s.logger, event.TopicProductDeleted, id,
		s.events.PublishProductDeleted(ctx, id))

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// DeleteAllProducts empties the catalog and returns how many products were
// removed.
func (s *ProductService) DeleteAllProducts(ctx context.Context) (int64, error) {
	n, err := s.products.DeleteMany(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete all products: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Flush(ctx); err != nil {
			s.logger.WarnContext(ctx, "product cache flush failed", slog.String("error", err.Error()))
		}
	}
	s.logger.WarnContext(ctx, "all products deleted", slog.Int64("count", n))
	return n, nil
}

// AddProductImage uploads an image and appends it to the product.
func (s *ProductService) AddProductImage(ctx context.Context, id string, input *storage.UploadInput) (*domain.Product, error) {
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return nil, lookupError(err, "product", id)
	}
	input.Folder = storage.FolderProducts
	res, err := s.assets.Upload(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("upload product image: %w", err)
	}

	var updated *domain.Product
	err = withVersionRetry(ctx, s.metrics, "product.add_image", func() error {
		p, err := s.products.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "product", id)
		}
		images := append(p.Images, domain.Image{PublicID: res.ID, URL: res.URL})
		updated, err = s.products.UpdateByID(ctx, id, docstore.Patch{"images": images},
			docstore.UpdateOptions{IfVersion: p.Version})
		return err
	})
	if err != nil {
		if derr := s.assets.Delete(ctx, res.ID); derr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned upload",
				slog.String("public_id", res.ID),
				slog.String("error", derr.Error()),
			)
		}
		return nil, fmt.Errorf("add product image: %w", err)
	}

	s.cacheInvalidate(ctx, updated)
	return updated, nil
}

func (s *ProductService) cacheSet(ctx context.Context, p *domain.Product) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProductService) cacheInvalidate(ctx context.Context, p *domain.Product) {
	if s.cache == nil || p == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
