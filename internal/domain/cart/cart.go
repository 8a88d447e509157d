package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

var (
	// ErrNotFound is returned when a customer has no active cart.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidQuantity is returned when a quantity below 1 is requested.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// ItemNotFoundError indicates the cart holds no line for the given SKU.
type ItemNotFoundError struct {
	SKU string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("product %s is not in the cart", e.SKU)
}

// Line is one product entry in a cart. UnitPrice is captured from the product
// when the line is created and does not track later price changes.
type Line struct {
	Product   *product.Product
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total returns quantity * unit price for this line.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a customer's in-progress collection of product lines. It holds at
// most one line per distinct product; repeated adds merge quantities.
type Cart struct {
	ID        string
	Customer  *customer.Customer
	Lines     []Line
	Active    bool
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// New creates an empty active cart for the given customer.
func New(c *customer.Customer) *Cart {
	return &Cart{
		ID:       uuid.NewString(),
		Customer: c,
		Active:   true,
	}
}

// AddItem adds a product to the cart, capturing its current unit price. When
// the product is already present, the quantity is merged into the existing
// line instead of creating a second one.
func (c *Cart) AddItem(p *product.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].Product.SKU == p.SKU {
			c.Lines[i].Quantity += quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{
		Product:   p,
		Quantity:  quantity,
		UnitPrice: p.Price,
	})
	return nil
}

// RemoveItem drops the line for the given SKU.
func (c *Cart) RemoveItem(sku string) error {
	for i := range c.Lines {
		if c.Lines[i].Product.SKU == sku {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return &ItemNotFoundError{SKU: sku}
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(sku string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].Product.SKU == sku {
			c.Lines[i].Quantity = quantity
			return nil
		}
	}
	return &ItemNotFoundError{SKU: sku}
}

// Subtotal sums quantity * unit price across all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Clear empties the cart. Used after a successful checkout.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Len is the total number of units in the cart, summing line quantities.
func (c *Cart) Len() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Repository defines persistence operations for carts.
type Repository interface {
	// GetActiveByCustomer returns the customer's active cart, hydrated with
	// current products. Returns ErrNotFound when none exists.
	GetActiveByCustomer(ctx context.Context, customerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
