package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/pkg/validator"
)

// OrderService implements the order lifecycle.
type OrderService struct {
	orders   docstore.Collection[domain.Order]
	products docstore.Collection[domain.Product]
	cache    ProductCache
	events   *event.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates an order service. cache may be nil.
func NewOrderService(
	orders docstore.Collection[domain.Order],
	products docstore.Collection[domain.Product],
	cache ProductCache,
	events *event.Producer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		cache:    cache,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrderInput holds the parameters for placing an order. The price
// components are pointers so that a missing value is told apart from zero.
type CreateOrderInput struct {
	ShippingInfo  domain.ShippingInfo `json:"shipping_info"`
	Items         []domain.OrderItem  `json:"order_items" validate:"required,min=1,dive"`
	PaymentInfo   domain.PaymentInfo  `json:"payment_info"`
	ItemsPrice    *float64            `json:"items_price" validate:"required,gte=0"`
	TaxPrice      *float64            `json:"tax_price" validate:"required,gte=0"`
	ShippingPrice *float64            `json:"shipping_price" validate:"required,gte=0"`
	TotalPrice    *float64            `json:"total_price" validate:"required,gte=0"`
}

// TransitionResult is the outcome of a status change. StockFailures lists the
// line items whose stock could not be decremented; the transition itself
// succeeded regardless.
type TransitionResult struct {
	Order         *domain.Order
	StockFailures []event.StockFailure
}

// OrderList is every order together with the sum of their totals.
type OrderList struct {
	Orders      []domain.Order `json:"orders"`
	TotalAmount float64        `json:"total_amount"`
}

// CreateOrder places an order for ownerID. Stock is not reserved; it is
// consumed when the order ships.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput, ownerID string) (*domain.Order, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:            uuid.NewString(),
		ShippingInfo:  input.ShippingInfo,
		Items:         input.Items,
		PaymentInfo:   input.PaymentInfo,
		ItemsPrice:    *input.ItemsPrice,
		TaxPrice:      *input.TaxPrice,
		ShippingPrice: *input.ShippingPrice,
		TotalPrice:    *input.TotalPrice,
		Status:        domain.OrderStatusProcessing,
		PaidAt:        now,
		UserID:        ownerID,
		CreatedAt:     now,
		Version:       1,
	}
	if err := order.CheckTotals(); err != nil {
		return nil, err
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.OrderCreated()
	logPublishError(ctx, s.logger, event.TopicOrderCreated, order.ID,
		s.events.PublishOrderCreated(ctx, order))

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", ownerID),
		slog.Float64("total_price", order.TotalPrice),
	)
	return order, nil
}

// GetOrder returns the order with the given id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "order", id)
	}
	return o, nil
}

// ListOrdersForUser returns the orders placed by userID, oldest first.
func (s *OrderService) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.Find(ctx, docstore.Filter{docstore.Eq("user_id", userID)}, docstore.FindOptions{
		Sort: []docstore.Sort{{Field: "created_at"}, {Field: docstore.FieldID}},
	})
	if err != nil {
		return nil, fmt.Errorf("list orders for user: %w", err)
	}
	return nonNil(orders), nil
}

// ListAllOrders returns every order and the sum of their total prices.
func (s *OrderService) ListAllOrders(ctx context.Context) (*OrderList, error) {
	orders, err := s.orders.Find(ctx, nil, docstore.FindOptions{
		Sort: []docstore.Sort{{Field: "created_at"}, {Field: docstore.FieldID}},
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	list := &OrderList{Orders: nonNil(orders)}
	for _, o := range orders {
		list.TotalAmount += o.TotalPrice
	}
	return list, nil
}

// Transition moves an order to target. The status change is committed
// first with a version check, so two concurrent requests for the same
// transition cannot both reach the stock step. Entering Shipped then
// decrements the stock of every line item; items that fail are collected,
// logged and published but never undo the transition.
func (s *OrderService) Transition(ctx context.Context, id string, target domain.OrderStatus) (*TransitionResult, error) {
	var (
		updated *domain.Order
		from    domain.OrderStatus
	)
	err := withVersionRetry(ctx, s.metrics, "order.transition", func() error {
		o, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "order", id)
		}
		from = o.Status
		if err := o.Transition(target, s.now()); err != nil {
			return err
		}
		patch := docstore.Patch{"order_status": o.Status}
		if o.DeliveredAt != nil {
			patch["delivered_at"] = *o.DeliveredAt
		}
		updated, err = s.orders.UpdateByID(ctx, id, patch, docstore.UpdateOptions{IfVersion: o.Version})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}

	result := &TransitionResult{Order: updated}
	if domain.RequiresStockDecrement(target) {
		result.StockFailures = s.consumeStock(ctx, updated)
	}

	s.metrics.OrderTransitioned(string(target))
	logPublishError(ctx, s.logger, event.TopicOrderStatusChanged, id,
		s.events.PublishOrderStatusChanged(ctx, updated, from))
	if len(result.StockFailures) > 0 {
		s.metrics.StockAdjustmentFailed(len(result.StockFailures))
		logPublishError(ctx, s.logger, event.TopicStockAdjustmentFailed, id,
			s.events.PublishStockAdjustmentFailed(ctx, id, result.StockFailures))
	}

	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
		slog.Int("stock_failures", len(result.StockFailures)),
	)
	return result, nil
}

// consumeStock decrements each line item's product stock, never below zero.
func (s *OrderService) consumeStock(ctx context.Context, o *domain.Order) []event.StockFailure {
	var failures []event.StockFailure
	for _, item := range o.Items {
		p, err := s.products.IncrementByID(ctx, item.ProductID, "stock", -item.Quantity,
			docstore.IncrementOptions{Floor: docstore.Floor(0)})
		if err != nil {
			reason := stockFailureReason(err)
			failures = append(failures, event.StockFailure{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    reason,
			})
			s.logger.WarnContext(ctx, "stock adjustment failed",
				slog.String("order_id", o.ID),
				slog.String("product_id", item.ProductID),
				slog.Int64("quantity", item.Quantity),
				slog.String("reason", reason),
				slog.String("error", err.Error()),
			)
			continue
		}
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, p); err != nil {
				s.logger.WarnContext(ctx, "product cache invalidation failed",
					slog.String("product_id", p.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return failures
}

func stockFailureReason(err error) string {
	switch {
	case errors.Is(err, docstore.ErrBelowFloor):
		return "insufficient_stock"
	case isNotFound(err):
		return "product_not_found"
	default:
		return "store_error"
	}
}

// DeleteOrder removes an order regardless of its status.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orders.DeleteByID(ctx, id); err != nil {
		return lookupError(err, "order", id)
	}
	logPublishError(ctx, s.logger, event.TopicOrderDeleted, id,
		s.events.PublishOrderDeleted(ctx, id))
	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", id))
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
