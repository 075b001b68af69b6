package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/pkg/validator"
)

// ReviewService maintains the reviews embedded in products together with the
// derived ratings and num_of_reviews fields.
type ReviewService struct {
	products docstore.Collection[domain.Product]
	cache    ProductCache
	events   *event.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewReviewService creates a review service. cache may be nil.
func NewReviewService(
	products docstore.Collection[domain.Product],
	cache ProductCache,
	events *event.Producer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		products: products,
		cache:    cache,
		events:   events,
		metrics:  m,
		logger:   logger,
	}
}

// SubmitReviewInput holds a rating for a product.
type SubmitReviewInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Rating    int    `json:"rating" validate:"gte=0,lte=5"`
	Comment   string `json:"comment" validate:"required"`
}

// SubmitReview adds the reviewer's review to the product or replaces the one
// they left before. It returns the product as stored.
func (s *ReviewService) SubmitReview(ctx context.Context, reviewer *domain.User, input SubmitReviewInput) (*domain.Product, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	var (
		product *domain.Product
		review  domain.Review
		created bool
	)
	err := withVersionRetry(ctx, s.metrics, "review.submit", func() error {
		p, err := s.products.FindByID(ctx, input.ProductID)
		if err != nil {
			return lookupError(err, "product", input.ProductID)
		}
		created = p.UpsertReview(domain.Review{
			ID:      uuid.NewString(),
			UserID:  reviewer.ID,
			Name:    reviewer.Name,
			Rating:  input.Rating,
			Comment: input.Comment,
		})
		review, _ = p.ReviewBy(reviewer.ID)

		product, err = s.saveReviews(ctx, p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}

	action := "updated"
	if created {
		action = "created"
	}
	s.metrics.ReviewMutated(action)
	s.invalidate(ctx, product)
	logPublishError(ctx, s.logger, event.TopicReviewSubmitted, product.ID,
		s.events.PublishReviewSubmitted(ctx, product, review))

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("product_id", product.ID),
		slog.String("review_id", review.ID),
		slog.String("action", action),
	)
	return product, nil
}

// ListReviews returns the reviews of a product in submission order.
func (s *ReviewService) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, lookupError(err, "product", productID)
	}
	if p.Reviews == nil {
		return []domain.Review{}, nil
	}
	return p.Reviews, nil
}

// RemoveReview deletes review reviewID from the product. An unknown review id
// leaves the list as it is but still recomputes the summary.
func (s *ReviewService) RemoveReview(ctx context.Context, productID, reviewID string) (*domain.Product, error) {
	var (
		product *domain.Product
		removed bool
	)
	err := withVersionRetry(ctx, s.metrics, "review.remove", func() error {
		p, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return lookupError(err, "product", productID)
		}
		removed = p.RemoveReview(reviewID)
		product, err = s.saveReviews(ctx, p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("remove review: %w", err)
	}

	s.invalidate(ctx, product)
	if removed {
		s.metrics.ReviewMutated("removed")
		logPublishError(ctx, s.logger, event.TopicReviewRemoved, product.ID,
			s.events.PublishReviewRemoved(ctx, product, reviewID))
	}

	s.logger.InfoContext(ctx, "review removed",
		slog.String("product_id", productID),
		slog.String("review_id", reviewID),
		slog.Bool("found", removed),
	)
	return product, nil
}

// saveReviews writes the review list and its summary in one conditional
// update so no concurrent writer's review is lost.
func (s *ReviewService) saveReviews(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	return s.products.UpdateByID(ctx, p.ID, docstore.Patch{
		"reviews":        p.Reviews,
		"ratings":        p.Ratings,
		"num_of_reviews": p.NumOfReviews,
	}, docstore.UpdateOptions{IfVersion: p.Version})
}

func (s *ReviewService) invalidate(ctx context.Context, p *domain.Product) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
