package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ============================================================================
// Review aggregation
// ============================================================================

func TestSummarize(t *testing.T) {
	assert.Equal(t, ReviewSummary{}, Summarize(nil))
	assert.Equal(t, ReviewSummary{Ratings: 3, NumOfReviews: 2}, Summarize([]Review{{Rating: 4}, {Rating: 2}}))
	assert.InDelta(t, 4.333, Summarize([]Review{{Rating: 5}, {Rating: 5}, {Rating: 3}}).Ratings, 0.001)
}

func TestProduct_UpsertReview_AppendsThenReplacesInPlace(t *testing.T) {
	p := &Product{}
	assert.True(t, p.UpsertReview(Review{ID: "r1", UserID: "alice", Rating: 4, Comment: "good"}))
	assert.True(t, p.UpsertReview(Review{ID: "r2", UserID: "bob", Rating: 2, Comment: "meh"}))
	assert.Equal(t, 3.0, p.Ratings)
	assert.Equal(t, 2, p.NumOfReviews)

	assert.False(t, p.UpsertReview(Review{ID: "ignored", UserID: "alice", Rating: 1, Comment: "changed my mind"}))
	assert.Equal(t, 2, p.NumOfReviews, "repeat submission never increases the count")
	assert.Equal(t, 1.5, p.Ratings)
	require.Len(t, p.Reviews, 2)
	assert.Equal(t, "r1", p.Reviews[0].ID, "position and id are preserved")
	assert.Equal(t, "changed my mind", p.Reviews[0].Comment)
}

func TestProduct_RemoveReview(t *testing.T) {
	p := &Product{}
	p.UpsertReview(Review{ID: "r1", UserID: "alice", Rating: 4, Comment: "good"})
	p.UpsertReview(Review{ID: "r2", UserID: "bob", Rating: 2, Comment: "meh"})

	assert.True(t, p.RemoveReview("r2"))
	assert.Equal(t, 4.0, p.Ratings)
	assert.Equal(t, 1, p.NumOfReviews)

	assert.False(t, p.RemoveReview("missing"))
	assert.Equal(t, 4.0, p.Ratings)
	assert.Equal(t, 1, p.NumOfReviews)

	assert.True(t, p.RemoveReview("r1"))
	assert.Zero(t, p.Ratings)
	assert.Zero(t, p.NumOfReviews)
	assert.NotNil(t, p.Reviews)
}

func TestProduct_RemoveReview_RepairsStaleSummary(t *testing.T) {
	p := &Product{Reviews: []Review{{ID: "r1", Rating: 5}}, Ratings: 1, NumOfReviews: 7}
	p.RemoveReview("nope")
	assert.Equal(t, 5.0, p.Ratings)
	assert.Equal(t, 1, p.NumOfReviews)
}

func TestProduct_ReviewBy(t *testing.T) {
	p := &Product{Reviews: []Review{{ID: "r1", UserID: "alice"}}}
	r, ok := p.ReviewBy("alice")
	assert.True(t, ok)
	assert.Equal(t, "r1", r.ID)
	_, ok = p.ReviewBy("bob")
	assert.False(t, ok)
}

func TestProduct_InStock(t *testing.T) {
	p := &Product{Stock: 3}
	assert.True(t, p.InStock(3))
	assert.False(t, p.InStock(4))
}

// ============================================================================
// Order state machine
// ============================================================================

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range ValidOrderStatuses() {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}
	assert.False(t, OrderStatus("Cancelled").Valid())
	assert.False(t, OrderStatus("shipped").Valid())
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.False(t, OrderStatusShipped.Terminal())
}

func TestOrder_Transition_HappyPath(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{ID: "o1", Status: OrderStatusProcessing}

	require.NoError(t, o.Transition(OrderStatusShipped, now))
	assert.Nil(t, o.DeliveredAt)

	require.NoError(t, o.Transition(OrderStatusDelivered, now))
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, now, *o.DeliveredAt)
}

func TestOrder_Transition_FromDelivered(t *testing.T) {
	for _, target := range append(ValidOrderStatuses(), "Bogus") {
		o := &Order{ID: "o1", Status: OrderStatusDelivered}
		err := o.Transition(target, time.Now())
		assert.ErrorIs(t, err, apperrors.ErrOrderFinalized, "target %q", target)
	}
}

func TestOrder_Transition_Rejected(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
	}{
		{OrderStatusProcessing, OrderStatusDelivered},
		{OrderStatusProcessing, OrderStatusProcessing},
		{OrderStatusShipped, OrderStatusProcessing},
		{OrderStatusShipped, OrderStatusShipped},
		{OrderStatusProcessing, "Cancelled"},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			o := &Order{ID: "o1", Status: tt.from}
			err := o.Transition(tt.to, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
			assert.Equal(t, tt.from, o.Status)
			assert.Nil(t, o.DeliveredAt)
		})
	}
}

func TestRequiresStockDecrement(t *testing.T) {
	assert.True(t, RequiresStockDecrement(OrderStatusShipped))
	assert.False(t, RequiresStockDecrement(OrderStatusDelivered))
	assert.False(t, RequiresStockDecrement(OrderStatusProcessing))
}

func TestOrder_CheckTotals(t *testing.T) {
	o := &Order{ItemsPrice: 100, TaxPrice: 18, ShippingPrice: 5.5, TotalPrice: 123.5}
	assert.NoError(t, o.CheckTotals())

	o.TotalPrice = 123.505
	assert.NoError(t, o.CheckTotals(), "within one cent")

	o.TotalPrice = 120
	err := o.CheckTotals()
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOrderItem_LineTotal(t *testing.T) {
	assert.InDelta(t, 29.97, OrderItem{Price: 9.99, Quantity: 3}.LineTotal(), 1e-9)
}

// ============================================================================
// Users and roles
// ============================================================================

func TestRole(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("Admin").Valid())
}

func TestUser_HasRole(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	assert.True(t, admin.HasRole(RoleAdmin))
	assert.False(t, admin.HasRole(RoleUser), "roles are not hierarchical")
}

func TestUser_PublicHidesCredentials(t *testing.T) {
	exp := time.Now()
	u := &User{ID: "u1", Name: "Alice", Email: "a@x.io", PasswordHash: "$2a$...", ResetPasswordToken: "abc", ResetPasswordExpiry: &exp, Role: RoleUser}
	pub := u.Public()
	assert.Equal(t, "u1", pub.ID)
	assert.Equal(t, RoleUser, pub.Role)
}
