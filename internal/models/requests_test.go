package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLinesUnmarshal(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		wantLines int
		wantErr   bool
	}{
		{name: "array", body: `{"items":[{"product_id":7,"quantity":2,"price":10.00}]}`, wantLines: 1},
		{name: "encoded string", body: `{"items":"[{\"product_id\":7,\"quantity\":2},{\"product_id\":8,\"quantity\":1}]"}`, wantLines: 2},
		{name: "empty array", body: `{"items":[]}`, wantLines: 0},
		{name: "malformed string", body: `{"items":"[{not json"}`, wantErr: true},
		{name: "wrong type", body: `{"items":42}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var req PlaceOrderRequest
			err := json.Unmarshal([]byte(tc.body), &req)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedItems)
				return
			}
			require.NoError(t, err)
			assert.Len(t, req.Items, tc.wantLines)
		})
	}
}

func TestOrderLinesKeepsOptionalPrice(t *testing.T) {
	lines, err := DecodeOrderLines(`[{"product_id":1,"quantity":3,"price":"4.50"},{"product_id":2,"quantity":1}]`)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	require.NotNil(t, lines[0].Price)
	assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("4.50")))
	assert.Nil(t, lines[1].Price)
}

func TestItemsOmittedStaysNil(t *testing.T) {
	var req PlaceOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":1}`), &req))
	assert.Nil(t, req.Items)
}

func TestAddressUnmarshal(t *testing.T) {
	var req PlaceOrderRequest

	require.NoError(t, json.Unmarshal([]byte(`{"shipping_address":"1 Main St"}`), &req))
	assert.Equal(t, Address("1 Main St"), req.ShippingAddress)

	body := `{"shipping_address":{"street":"1 Main St","city":"Springfield","state":"IL","zipCode":"62701","country":"US"}}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, Address("1 Main St, Springfield, IL 62701, US"), req.ShippingAddress)
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range OrderStatuses {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []OrderStatus{"", "shipped", "PENDING", "delivered"} {
		assert.False(t, s.Valid(), s)
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, Price: decimal.RequireFromString("0.10")}
	assert.True(t, item.Subtotal().Equal(decimal.RequireFromString("0.30")))
}

func TestStringListUnmarshal(t *testing.T) {
	var in ProductInput
	require.NoError(t, json.Unmarshal([]byte(`{"about_product":"Organic, locally grown ,,  Fresh "}`), &in))
	assert.Equal(t, StringList{"Organic", "locally grown", "Fresh"}, in.AboutProduct)

	in = ProductInput{}
	require.NoError(t, json.Unmarshal([]byte(`{"about_product":["a","b"]}`), &in))
	assert.Equal(t, StringList{"a", "b"}, in.AboutProduct)

	in = ProductInput{}
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Kiwi"}`), &in))
	assert.Nil(t, in.AboutProduct, "absent list leaves the field untouched")
}
