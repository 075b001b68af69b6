package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

func validProductInput() CreateProductInput {
	return CreateProductInput{
		Name:        "Desk Lamp",
		Price:       39.9,
		Description: "Warm light",
		Stock:       12,
		Category:    "Home",
	}
}

func TestCreateProduct_Success(t *testing.T) {
	f := newFixture()
	svc := f.productService()

	p, err := svc.CreateProduct(context.Background(), validProductInput(), "admin-1")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "desk-lamp-"+p.ID[:8], p.Slug)
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, "admin-1", p.UserID)
	assert.Equal(t, testNow, p.CreatedAt)
	assert.Zero(t, p.NumOfReviews)

	stored, err := f.products.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", stored.Name)
	assert.Contains(t, f.pub.Topics(), event.TopicProductCreated)
}

func TestCreateProduct_ValidationError(t *testing.T) {
	f := newFixture()
	svc := f.productService()

	input := validProductInput()
	input.Price = 0
	input.Stock = 10_000
	input.Category = ""

	_, err := svc.CreateProduct(context.Background(), input, "admin-1")
	require.Error(t, err)

	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := verr.Fields()
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "stock")
	assert.Contains(t, fields, "category")

	n, _ := f.products.Count(context.Background(), nil)
	assert.Zero(t, n)
}

func TestGetProduct_ByIDOrSlug(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	f.seedProduct(t, "p1", 3)

	byID, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	bySlug, err := svc.GetProduct(context.Background(), "product-p1")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, bySlug.ID)

	_, err = svc.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListProducts_UsesPipeline(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.seedProduct(t, id, 1)
	}

	res, err := svc.ListProducts(context.Background(), map[string]string{"page": "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Total)
	assert.Equal(t, int64(5), res.Count)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 2, res.Page)
}

func TestUpdateProduct_PatchesAndReslugs(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	f.seedProduct(t, "p1", 3)

	name := "Reading Lamp"
	price := 49.5
	p, err := svc.UpdateProduct(context.Background(), "p1", UpdateProductInput{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Reading Lamp", p.Name)
	assert.Equal(t, "reading-lamp-p1", p.Slug)
	assert.Equal(t, 49.5, p.Price)
	assert.Equal(t, int64(3), p.Stock, "untouched fields survive")
	assert.Equal(t, int64(2), p.Version)
	assert.Contains(t, f.pub.Topics(), event.TopicProductUpdated)
}

func TestUpdateProduct_ValidatesOnlyPatchedFields(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	f.seedProduct(t, "p1", 3)

	stock := int64(-1)
	_, err := svc.UpdateProduct(context.Background(), "p1", UpdateProductInput{Stock: &stock})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.UpdateProduct(context.Background(), "p1", UpdateProductInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	f := newFixture()
	svc := f.productService()

	name := "Lamp"
	_, err := svc.UpdateProduct(context.Background(), "missing", UpdateProductInput{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteProduct_RemovesImages(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	f.seedProduct(t, "p1", 3)

	p, err := svc.AddProductImage(context.Background(), "p1", pngUpload("png-bytes"))
	require.NoError(t, err)
	require.Len(t, p.Images, 1)
	assert.True(t, f.assets.Has(p.Images[0].PublicID))

	require.NoError(t, svc.DeleteProduct(context.Background(), "p1"))
	assert.Zero(t, f.assets.Len())
	assert.Contains(t, f.pub.Topics(), event.TopicProductDeleted)

	err = svc.DeleteProduct(context.Background(), "p1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddProductImage_RejectsBadType(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	f.seedProduct(t, "p1", 3)

	in := pngUpload("gif89a")
	in.ContentType = "application/pdf"
	_, err := svc.AddProductImage(context.Background(), "p1", in)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, f.assets.Len())
}

func TestDeleteAllProducts(t *testing.T) {
	f := newFixture()
	svc := f.productService()
	f.seedProduct(t, "p1", 1)
	f.seedProduct(t, "p2", 1)

	n, err := svc.DeleteAllProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, _ := f.products.Count(context.Background(), nil)
	assert.Zero(t, left)
}

func TestWithVersionRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", 1)
	racy := &racyCollection[domain.Product]{Collection: f.products, conflicts: maxAttempts}
	svc := NewReviewService(racy, nil, f.events, nil, logger.Discard())

	_, err := svc.SubmitReview(context.Background(), &domain.User{ID: "u1", Name: "Alice"},
		SubmitReviewInput{ProductID: "p1", Rating: 4, Comment: "ok"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, maxAttempts, racy.calls)
}
