package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

func testProduct(t *testing.T, sku string, price int64, stock int) *product.Product {
	t.Helper()
	p, err := product.New(sku, "Product "+sku, "misc", decimal.NewFromInt(price), stock)
	require.NoError(t, err)
	return p
}

func testCart(t *testing.T) *Cart {
	t.Helper()
	cust, err := customer.New("Ana", "ana@example.com", "12345678901")
	require.NoError(t, err)
	return New(cust)
}

func TestAddItem_MergesQuantities(t *testing.T) {
	c := testCart(t)
	p := testProduct(t, "SKU-1", 50, 10)

	require.NoError(t, c.AddItem(p, 2))
	require.NoError(t, c.AddItem(p, 3))

	require.Len(t, c.Lines, 1, "repeated adds must not create a second line")
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.Equal(t, 5, c.Len())
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	c := testCart(t)
	p := testProduct(t, "SKU-1", 50, 10)

	require.ErrorIs(t, c.AddItem(p, 0), ErrInvalidQuantity)
	require.ErrorIs(t, c.AddItem(p, -1), ErrInvalidQuantity)
	assert.Empty(t, c.Lines)
}

func TestAddItem_CapturesPriceAtAddTime(t *testing.T) {
	c := testCart(t)
	p := testProduct(t, "SKU-1", 50, 10)

	require.NoError(t, c.AddItem(p, 1))
	p.Price = decimal.NewFromInt(80)

	assert.Equal(t, "50", c.Lines[0].UnitPrice.String(),
		"unit price is frozen at add time")
}

func TestRemoveItem(t *testing.T) {
	c := testCart(t)
	p1 := testProduct(t, "SKU-1", 50, 10)
	p2 := testProduct(t, "SKU-2", 20, 10)

	require.NoError(t, c.AddItem(p1, 1))
	require.NoError(t, c.AddItem(p2, 1))

	require.NoError(t, c.RemoveItem("SKU-1"))
	require.Len(t, c.Lines, 1)

	var nfErr *ItemNotFoundError
	err := c.RemoveItem("SKU-1")
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "SKU-1", nfErr.SKU)
}

func TestSetQuantity(t *testing.T) {
	c := testCart(t)
	p := testProduct(t, "SKU-1", 50, 10)
	require.NoError(t, c.AddItem(p, 1))

	require.NoError(t, c.SetQuantity("SKU-1", 4))
	assert.Equal(t, 4, c.Lines[0].Quantity)

	require.ErrorIs(t, c.SetQuantity("SKU-1", 0), ErrInvalidQuantity)

	var nfErr *ItemNotFoundError
	require.ErrorAs(t, c.SetQuantity("SKU-9", 2), &nfErr)
}

func TestSubtotalAndLen(t *testing.T) {
	c := testCart(t)
	require.True(t, c.Subtotal().IsZero())
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.AddItem(testProduct(t, "SKU-1", 50, 10), 2))
	require.NoError(t, c.AddItem(testProduct(t, "SKU-2", 20, 10), 3))

	assert.Equal(t, "160", c.Subtotal().String())
	assert.Equal(t, 5, c.Len(), "cart length is the sum of quantities, not line count")
}

func TestClear(t *testing.T) {
	c := testCart(t)
	require.NoError(t, c.AddItem(testProduct(t, "SKU-1", 50, 10), 2))

	c.Clear()
	assert.Empty(t, c.Lines)
	assert.True(t, c.Subtotal().IsZero())
}
