package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
)

func TestValidateCart_Valid(t *testing.T) {
	ts := newTestServer(t)
	ts.products.On("FindByID", mock.Anything, sneakerID).Return(sneaker(), nil)

	rec := ts.do(jsonRequest(t, http.MethodPost, "/api/v1/cart/validate", `{
		"items": [{"productId": "`+sneakerID+`", "quantity": 2, "size": 42, "color": "negro", "price": 1}]
	}`))

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeResponse(t, rec))
	assert.Equal(t, true, data["isValid"])
	assert.Equal(t, float64(200), data["totalPrice"])

	items := data["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "Negro", line["color"])
	assert.Equal(t, float64(100), line["price"])
}

func TestValidateCart_InsufficientStockIs400(t *testing.T) {
	ts := newTestServer(t)
	ts.products.On("FindByID", mock.Anything, sneakerID).Return(sneaker(), nil)

	rec := ts.do(jsonRequest(t, http.MethodPost, "/api/v1/cart/validate", map[string]any{
		"items": []map[string]any{{"productId": sneakerID, "quantity": 9, "size": "42", "color": "Negro"}},
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	data := dataMap(t, resp)
	assert.Equal(t, false, data["isValid"])
	assert.Equal(t, float64(0), data["totalPrice"])
	assert.Len(t, data["errors"], 1)
}

func TestValidateCart_NonArrayItemsIsEmptyCart(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(t, http.MethodPost, "/api/v1/cart/validate", `{"items": "nope"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	data := dataMap(t, decodeResponse(t, rec))
	assert.Equal(t, false, data["isValid"])
	assert.Equal(t, []any{"empty or invalid cart"}, data["errors"])
	ts.products.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestValidateCart_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(t, http.MethodPost, "/api/v1/cart/validate", `{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestValidateCart_RepositoryFailureIs500(t *testing.T) {
	ts := newTestServer(t)
	ts.products.On("FindByID", mock.Anything, sneakerID).Return(nil, apperrors.Wrap(errors.New("connection refused"), "find product"))

	rec := ts.do(jsonRequest(t, http.MethodPost, "/api/v1/cart/validate", map[string]any{
		"items": []map[string]any{{"productId": sneakerID, "quantity": 1, "size": "42", "color": "Negro"}},
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
