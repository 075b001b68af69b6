// Package event publishes storefront domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for storefront domain events.
const (
	TopicProductCreated         = "ecommerce.product.created"
	TopicProductUpdated         = "ecommerce.product.updated"
	TopicProductDeleted         = "ecommerce.product.deleted"
	TopicReviewSubmitted        = "ecommerce.review.submitted"
	TopicReviewRemoved          = "ecommerce.review.removed"
	TopicOrderCreated           = "ecommerce.order.created"
	TopicOrderStatusChanged     = "ecommerce.order.status_changed"
	TopicOrderDeleted           = "ecommerce.order.deleted"
	TopicStockAdjustmentFailed  = "ecommerce.inventory.stock_adjustment_failed"
	TopicUserRegistered         = "ecommerce.user.registered"
	TopicPasswordResetRequested = "ecommerce.user.password_reset_requested"
)

// Aggregate types.
const (
	AggregateProduct = "product"
	AggregateOrder   = "order"
	AggregateUser    = "user"
)

// Source is stamped on every event published by this service.
const Source = "storefront"

// ProductData is the payload of product created and updated events.
type ProductData struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
	Version  int64   `json:"version"`
}

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// ReviewData is the payload of review events.
type ReviewData struct {
	ProductID    string  `json:"product_id"`
	ReviewID     string  `json:"review_id"`
	UserID       string  `json:"user_id,omitempty"`
	Rating       int     `json:"rating,omitempty"`
	Ratings      float64 `json:"ratings"`
	NumOfReviews int     `json:"num_of_reviews"`
}

// OrderData is the payload of order.created.
type OrderData struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	Status     domain.OrderStatus `json:"order_status"`
	TotalPrice float64            `json:"total_price"`
	ItemCount  int                `json:"item_count"`
}

// OrderStatusChangedData is the payload of order.status_changed.
type OrderStatusChangedData struct {
	OrderID    string             `json:"order_id"`
	UserID     string             `json:"user_id"`
	From       domain.OrderStatus `json:"from"`
	To         domain.OrderStatus `json:"to"`
	TotalPrice float64            `json:"total_price"`
}

// OrderDeletedData is the payload of order.deleted.
type OrderDeletedData struct {
	ID string `json:"id"`
}

// StockFailure is one line item whose stock could not be decremented.
type StockFailure struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
}

// StockAdjustmentFailedData is the payload of inventory.stock_adjustment_failed.
type StockAdjustmentFailedData struct {
	OrderID  string         `json:"order_id"`
	Failures []StockFailure `json:"failures"`
}

// UserData is the payload of user events. It never carries credentials.
type UserData struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes domain events. A nil Producer, or one without a
// publisher, drops every event.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a producer. pub may be nil when Kafka is disabled.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.pub == nil {
		return nil
	}
	ev, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return err
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}
	if err := p.pub.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:       p.ID,
		Name:     p.Name,
		Slug:     p.Slug,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
		Version:  p.Version,
	}
}

// PublishProductCreated publishes product.created.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateProduct, productData(product))
}

// PublishProductUpdated publishes product.updated.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, AggregateProduct, productData(product))
}

// PublishProductDeleted publishes product.deleted.
func (p *Producer) PublishProductDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicProductDeleted, id, AggregateProduct, ProductDeletedData{ID: id})
}

// PublishReviewSubmitted publishes review.submitted with the new aggregate.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, product *domain.Product, review domain.Review) error {
	return p.publish(ctx, TopicReviewSubmitted, product.ID, AggregateProduct, ReviewData{
		ProductID:    product.ID,
		ReviewID:     review.ID,
		UserID:       review.UserID,
		Rating:       review.Rating,
		Ratings:      product.Ratings,
		NumOfReviews: product.NumOfReviews,
	})
}

// PublishReviewRemoved publishes review.removed with the new aggregate.
func (p *Producer) PublishReviewRemoved(ctx context.Context, product *domain.Product, reviewID string) error {
	return p.publish(ctx, TopicReviewRemoved, product.ID, AggregateProduct, ReviewData{
		ProductID:    product.ID,
		ReviewID:     reviewID,
		Ratings:      product.Ratings,
		NumOfReviews: product.NumOfReviews,
	})
}

// PublishOrderCreated publishes order.created.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateOrder, OrderData{
		ID:         order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		ItemCount:  len(order.Items),
	})
}

// PublishOrderStatusChanged publishes order.status_changed.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	return p.publish(ctx, TopicOrderStatusChanged, order.ID, AggregateOrder, OrderStatusChangedData{
		OrderID:    order.ID,
		UserID:     order.UserID,
		From:       from,
		To:         order.Status,
		TotalPrice: order.TotalPrice,
	})
}

// PublishOrderDeleted publishes order.deleted.
func (p *Producer) PublishOrderDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicOrderDeleted, id, AggregateOrder, OrderDeletedData{ID: id})
}

// PublishStockAdjustmentFailed reports line items whose stock was not
// decremented when an order shipped.
func (p *Producer) PublishStockAdjustmentFailed(ctx context.Context, orderID string, failures []StockFailure) error {
	return p.publish(ctx, TopicStockAdjustmentFailed, orderID, AggregateOrder, StockAdjustmentFailedData{
		OrderID:  orderID,
		Failures: failures,
	})
}

func userData(u *domain.User) UserData {
	return UserData{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// PublishUserRegistered publishes user.registered.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateUser, userData(user))
}

// PublishPasswordResetRequested publishes user.password_reset_requested.
// The reset token is not part of the event.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicPasswordResetRequested, user.ID, AggregateUser, userData(user))
}
