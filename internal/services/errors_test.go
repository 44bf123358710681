package services

import (
	"errors"
	"testing"

	"github.com/freshmart/grocery-store/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldErrors(t *testing.T) {
	decoded := []FieldError{{Field: "user_id", Message: "must be an integer"}}

	t.Run("merges validation failures", func(t *testing.T) {
		err := WithFieldErrors(decoded, ValidatePlaceOrder(models.PlaceOrderRequest{CustomerEmail: "bad"}))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		byField := verr.ByField()
		assert.Equal(t, []string{"must be an integer"}, byField["user_id"])
		for _, field := range []string{"customer_name", "customer_email", "shipping_address", "items"} {
			assert.Contains(t, byField, field)
		}
	})

	t.Run("decode failures alone", func(t *testing.T) {
		err := WithFieldErrors(decoded, nil)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, decoded, verr.Fields)
	})

	t.Run("nothing to merge", func(t *testing.T) {
		assert.NoError(t, WithFieldErrors(nil, nil))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		assert.Same(t, boom, WithFieldErrors(decoded, boom))
	})
}

func TestValidateProductInputRules(t *testing.T) {
	blank := " "

	create := ValidateProductInput(models.ProductInput{}, true)
	var verr *ValidationError
	require.ErrorAs(t, create, &verr)
	assert.Len(t, verr.ByField(), 4)

	assert.NoError(t, ValidateProductInput(models.ProductInput{}, false))

	update := ValidateProductInput(models.ProductInput{Name: &blank}, false)
	require.ErrorAs(t, update, &verr)
	assert.Contains(t, verr.ByField(), "name")
}
