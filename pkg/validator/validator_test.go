package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=1000"`
}

type orderRequest struct {
	Items  []lineRequest `json:"checkoutItems" validate:"required,min=1,dive"`
	Status string        `json:"status" validate:"omitempty,oneof=processing shipped delivered cancelled"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(lineRequest{ProductID: "P1", Quantity: 2}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(lineRequest{Quantity: -1}))

	assert.Equal(t, "is required", fields["productId"])
	assert.Equal(t, "must be greater than or equal to 0", fields["quantity"])
}

func TestValidate_NestedPath(t *testing.T) {
	fields := fieldsOf(t, Validate(orderRequest{Items: []lineRequest{{ProductID: "P1"}, {Quantity: 1}}}))

	assert.Equal(t, "is required", fields["checkoutItems[1].productId"])
	assert.Len(t, fields, 1)
}

func TestValidate_EmptySlice(t *testing.T) {
	fields := fieldsOf(t, Validate(orderRequest{Items: []lineRequest{}}))
	assert.Equal(t, "must contain at least 1 item(s)", fields["checkoutItems"])
}

func TestValidate_OneOf(t *testing.T) {
	req := orderRequest{Items: []lineRequest{{ProductID: "P1"}}, Status: "lost"}
	fields := fieldsOf(t, Validate(req))
	assert.Contains(t, fields["status"], "must be one of")
}

func TestValidationError_Error(t *testing.T) {
	err := Validate(lineRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'productId' is required")
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"P1","quantity":3}`))
		var dst lineRequest
		require.NoError(t, DecodeAndValidate(req, &dst))
		assert.Equal(t, 3, dst.Quantity)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":`))
		var dst lineRequest
		err := DecodeAndValidate(req, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode request body")
	})

	t.Run("fails validation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1}`))
		var dst lineRequest
		var valErr *ValidationError
		assert.ErrorAs(t, DecodeAndValidate(req, &dst), &valErr)
	})
}
