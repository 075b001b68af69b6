package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
)

// ReviewHandler handles HTTP requests for product reviews.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// Submit handles PUT /api/v1/review
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input service.SubmitReviewInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p, err := h.service.SubmitReview(r.Context(), auth.UserFromContext(r.Context()), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// List handles GET /api/v1/reviews?id={productID}
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("id")
	if productID == "" {
		httputil.WriteInvalidParameter(w, "query parameter id is required")
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, reviews)
}

// Remove handles DELETE /api/v1/reviews?productId={productID}&id={reviewID}
func (h *ReviewHandler) Remove(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, reviewID := q.Get("productId"), q.Get("id")
	if productID == "" {
		httputil.WriteInvalidParameter(w, "query parameter productId is required")
		return
	}

	p, err := h.service.RemoveReview(r.Context(), productID, reviewID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}
