package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressValidate(t *testing.T) {
	addr := Address{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Street:  "12 Analytical Way",
		City:    "London",
		Zip:     "N1 9GU",
		Country: "GB",
	}
	assert.NoError(t, addr.Validate())

	addr.Email = "not-an-email"
	addr.City = ""
	err := addr.Validate()
	require.ErrorIs(t, err, ErrInvalidAddress)
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "city")
}

func TestNormalizedQuantity(t *testing.T) {
	var req AddToCartRequest
	q, err := req.NormalizedQuantity()
	require.NoError(t, err)
	assert.Equal(t, 1, q)

	require.NoError(t, json.Unmarshal([]byte(`{"sku":"CH-1","quantity":"3"}`), &req))
	q, err = req.NormalizedQuantity()
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	require.NoError(t, json.Unmarshal([]byte(`{"quantity":100}`), &req))
	_, err = req.NormalizedQuantity()
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	require.NoError(t, json.Unmarshal([]byte(`{"quantity":0}`), &req))
	_, err = req.NormalizedQuantity()
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLookupShippingMethod(t *testing.T) {
	m, ok := LookupShippingMethod(" Express ")
	require.True(t, ok)
	assert.InDelta(t, 15, m.Price, 0.001)

	m, ok = LookupShippingMethod("standard")
	require.True(t, ok)
	assert.Zero(t, m.Price)

	_, ok = LookupShippingMethod("teleport")
	assert.False(t, ok)
	assert.Len(t, ShippingMethods(), 3)
}
