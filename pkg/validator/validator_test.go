package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productInput struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gt=0,lte=99999999"`
	Stock    int     `json:"stock" validate:"gte=0,lte=9999"`
	Category string  `json:"category" validate:"required"`
}

type signup struct {
	Name     string `json:"name" validate:"required,min=4,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(productInput{Name: "Lamp", Price: 19.5, Stock: 3, Category: "Home"})
	assert.NoError(t, err)
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(signup{Name: "Al", Email: "nope", Password: "short"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := ve.Fields()
	assert.Equal(t, "must be at least 4 characters", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Contains(t, ve.Error(), "field 'email'")
}

func TestValidate_NumericBounds(t *testing.T) {
	err := Validate(productInput{Name: "Lamp", Price: 0, Stock: 10000, Category: "Home"})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be greater than 0", ve.Fields()["price"])
	assert.Equal(t, "must be less than or equal to 9999", ve.Fields()["stock"])
}

func TestValidatePartial_OnlyListedFields(t *testing.T) {
	// Name and category are empty, but only stock is part of the patch.
	err := ValidatePartial(&productInput{Stock: 5}, "stock")
	assert.NoError(t, err)

	err = ValidatePartial(&productInput{Stock: -1}, "stock")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields(), "stock")
	assert.NotContains(t, ve.Fields(), "name")
}

func TestValidatePartial_UnknownFieldsIgnored(t *testing.T) {
	assert.NoError(t, ValidatePartial(productInput{}, "reviews", "ratings"))
}

func TestValidatePartial_RejectsNonStruct(t *testing.T) {
	assert.Error(t, ValidatePartial(42, "x"))
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"name":"Desk","price":120,"stock":2,"category":"Office"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var in productInput
	require.NoError(t, DecodeAndValidate(req, &in))
	assert.Equal(t, "Desk", in.Name)

	req = httptest.NewRequest("POST", "/", strings.NewReader("{"))
	assert.Error(t, DecodeAndValidate(req, &in))
}
