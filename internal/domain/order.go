package domain

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

// Order statuses, in the only order they may be visited.
const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
)

// priceTolerance is the largest accepted gap between the total and the sum of
// its components.
const priceTolerance = 0.01

// ValidOrderStatuses returns every order status.
func ValidOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered
}

// allowedTransitions lists the forward-only edges of the state machine.
// Shipped has no self edge, so a repeated ship cannot decrement stock twice.
var allowedTransitions = map[OrderStatus]OrderStatus{
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// ShippingInfo is the delivery address of an order.
type ShippingInfo struct {
	Address string `json:"address" bson:"address" validate:"required"`
	City    string `json:"city" bson:"city" validate:"required"`
	State   string `json:"state" bson:"state" validate:"required"`
	Country string `json:"country" bson:"country" validate:"required"`
	PinCode string `json:"pin_code" bson:"pin_code" validate:"required"`
	PhoneNo string `json:"phone_no" bson:"phone_no" validate:"required"`
}

// OrderItem is a line item frozen at purchase time.
type OrderItem struct {
	ProductID string  `json:"product_id" bson:"product_id" validate:"required"`
	Name      string  `json:"name" bson:"name" validate:"required"`
	Price     float64 `json:"price" bson:"price" validate:"gte=0"`
	Quantity  int64   `json:"quantity" bson:"quantity" validate:"gte=1"`
	Image     string  `json:"image" bson:"image"`
}

// LineTotal returns price times quantity.
func (i OrderItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// PaymentInfo records the payment processor's reference.
type PaymentInfo struct {
	ID     string `json:"id" bson:"id" validate:"required"`
	Status string `json:"status" bson:"status" validate:"required"`
}

// Order is a customer purchase.
type Order struct {
	ID            string       `json:"id" bson:"_id"`
	ShippingInfo  ShippingInfo `json:"shipping_info" bson:"shipping_info"`
	Items         []OrderItem  `json:"order_items" bson:"order_items"`
	PaymentInfo   PaymentInfo  `json:"payment_info" bson:"payment_info"`
	ItemsPrice    float64      `json:"items_price" bson:"items_price"`
	TaxPrice      float64      `json:"tax_price" bson:"tax_price"`
	ShippingPrice float64      `json:"shipping_price" bson:"shipping_price"`
	TotalPrice    float64      `json:"total_price" bson:"total_price"`
	Status        OrderStatus  `json:"order_status" bson:"order_status"`
	PaidAt        time.Time    `json:"paid_at" bson:"paid_at"`
	DeliveredAt   *time.Time   `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	UserID        string       `json:"user_id" bson:"user_id"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	Version       int64        `json:"version" bson:"version"`
}

// CheckTotals verifies that TotalPrice equals the sum of the other
// components within one cent.
func (o *Order) CheckTotals() error {
	sum := o.ItemsPrice + o.TaxPrice + o.ShippingPrice
	if math.Abs(sum-o.TotalPrice) > priceTolerance {
		return apperrors.InvalidInput(fmt.Sprintf(
			"total_price %.2f does not match items_price + tax_price + shipping_price = %.2f", o.TotalPrice, sum))
	}
	return nil
}

// CanTransitionTo reports whether target is the next status after o.Status.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	next, ok := allowedTransitions[o.Status]
	return ok && next == target
}

// Transition moves o to target. Leaving a terminal status fails with
// OrderFinalized; skipping or reversing a step fails with InvalidInput.
// DeliveredAt is stamped only when entering Delivered.
func (o *Order) Transition(target OrderStatus, now time.Time) error {
	if o.Status.Terminal() {
		return apperrors.OrderFinalized(o.ID)
	}
	if !target.Valid() {
		return apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", target))
	}
	if !o.CanTransitionTo(target) {
		return apperrors.InvalidInput(fmt.Sprintf("order cannot move from %s to %s", o.Status, target))
	}
	o.Status = target
	if target == OrderStatusDelivered {
		t := now.UTC()
		o.DeliveredAt = &t
	}
	return nil
}

// RequiresStockDecrement reports whether entering target consumes stock.
func RequiresStockDecrement(target OrderStatus) bool {
	return target == OrderStatusShipped
}
