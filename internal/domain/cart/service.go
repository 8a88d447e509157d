package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

// Service exposes the cart operations of the front end: show, add item,
// remove item, set quantity. It creates an active cart on first use.
type Service struct {
	carts     Repository
	products  product.Repository
	customers customer.Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository, customers customer.Repository) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		customers: customers,
	}
}

// Show returns the customer's active cart, creating an empty one when none
// exists yet.
func (s *Service) Show(ctx context.Context, customerID string) (*Cart, error) {
	return s.activeCart(ctx, customerID)
}

// AddItem adds quantity units of the given product to the customer's cart.
func (s *Service) AddItem(ctx context.Context, customerID, sku string, quantity int) (*Cart, error) {
	c, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetBySKU(ctx, sku)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", sku)
	}

	if err := c.AddItem(p, quantity); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem drops the line for the given SKU from the customer's cart.
func (s *Service) RemoveItem(ctx context.Context, customerID, sku string) (*Cart, error) {
	c, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveItem(sku); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SetQuantity replaces the quantity of an existing cart line.
func (s *Service) SetQuantity(ctx context.Context, customerID, sku string, quantity int) (*Cart, error) {
	c, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(sku, quantity); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

func (s *Service) activeCart(ctx context.Context, customerID string) (*Cart, error) {
	c, err := s.carts.GetActiveByCustomer(ctx, customerID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "get active cart")
	}

	cust, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %s", customerID)
	}

	c = New(cust)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save new cart")
	}
	return c, nil
}
