// Package service implements the storefront use cases over the document
// store: catalog and product management, reviews, orders and accounts.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// maxAttempts bounds read-modify-write retries on version conflicts.
const maxAttempts = 3

// ProductCache is the read cache in front of product lookups.
type ProductCache interface {
	Get(ctx context.Context, key string) (*domain.Product, bool, error)
	Set(ctx context.Context, p *domain.Product) error
	Invalidate(ctx context.Context, p *domain.Product) error
	InvalidateID(ctx context.Context, id string) error
	Flush(ctx context.Context) error
}

// withVersionRetry runs fn until it stops failing with docstore.ErrConflict,
// at most maxAttempts times. fn must re-read the document on every call.
func withVersionRetry(ctx context.Context, m *metrics.Metrics, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, docstore.ErrConflict) {
			return err
		}
		m.VersionConflict(op)
		if attempt == maxAttempts {
			return apperrors.Conflict(fmt.Sprintf("%s lost %d concurrent update races, please retry", op, maxAttempts))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// lookupError turns a store miss into a NotFound for resource id and wraps
// anything else.
func lookupError(err error, resource, id string) error {
	if isNotFound(err) {
		return apperrors.NotFound(resource, id)
	}
	return fmt.Errorf("get %s: %w", resource, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

func logPublishError(ctx context.Context, logger *slog.Logger, topic, id string, err error) {
	if err == nil {
		return
	}
	logger.ErrorContext(ctx, "failed to publish event",
		slog.String("topic", topic),
		slog.String("aggregate_id", id),
		slog.String("error", err.Error()),
	)
}
