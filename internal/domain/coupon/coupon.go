package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypeValue takes a fixed amount off the subtotal.
	TypeValue Type = "VALUE"
	// TypePercentage takes a percentage (0-100] of the subtotal off.
	TypePercentage Type = "PERCENTAGE"
	// TypeFreeShipping waives the shipping cost, fully or up to a cap.
	TypeFreeShipping Type = "FREE_SHIPPING"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageLimitExceeded is returned by RegisterUse once the coupon is
	// already at its maximum use count.
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a discount rule keyed by code. Uses never exceeds MaxUses, and a
// use is registered only when the coupon actually reduced a total.
type Coupon struct {
	Code               string
	Type               Type
	Value              decimal.Decimal
	ExpiresAt          *time.Time
	MaxUses            int
	Uses               int
	EligibleCategories []string
}

// New validates and creates a coupon. The code and eligible categories are
// trimmed and upper-cased; an empty category list means unrestricted.
func New(code string, typ Type, value decimal.Decimal, expiresAt *time.Time, maxUses int, categories []string) (*Coupon, error) {
	c := &Coupon{
		Code:      strings.ToUpper(strings.TrimSpace(code)),
		Type:      typ,
		Value:     value,
		ExpiresAt: expiresAt,
		MaxUses:   maxUses,
	}
	if c.Code == "" {
		return nil, errors.New("coupon code must not be empty")
	}
	if maxUses < 1 {
		return nil, errors.Errorf("max uses must be at least 1, got %d", maxUses)
	}
	switch typ {
	case TypeValue:
		if !value.IsPositive() {
			return nil, errors.Errorf("value coupon amount must be greater than zero, got %s", value)
		}
	case TypePercentage:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return nil, errors.Errorf("percentage must be in (0,100], got %s", value)
		}
	case TypeFreeShipping:
		if value.IsNegative() {
			return nil, errors.Errorf("free shipping cap must not be negative, got %s", value)
		}
	default:
		return nil, errors.Errorf("unsupported coupon type %q", typ)
	}
	for _, cat := range categories {
		if norm := normalizeCategory(cat); norm != "" {
			c.EligibleCategories = append(c.EligibleCategories, norm)
		}
	}
	return c, nil
}

// Valid reports whether the coupon can still be used at the reference time:
// not expired and not at its usage limit.
func (c *Coupon) Valid(ref time.Time) bool {
	if c.ExpiresAt != nil && ref.After(*c.ExpiresAt) {
		return false
	}
	return c.Uses < c.MaxUses
}

// Applicable reports whether the coupon applies to the given product
// category. An unrestricted coupon applies to everything; a restricted one
// requires a non-empty, matching category.
func (c *Coupon) Applicable(category string) bool {
	if len(c.EligibleCategories) == 0 {
		return true
	}
	norm := normalizeCategory(category)
	if norm == "" {
		return false
	}
	for _, eligible := range c.EligibleCategories {
		if eligible == norm {
			return true
		}
	}
	return false
}

// Discount computes the discount amount for the given figures. It returns
// zero when there is nothing to discount, when the coupon is invalid at the
// reference time, or when it does not apply to the category. The result is
// clamped into [0, subtotal+shipping].
func (c *Coupon) Discount(subtotal decimal.Decimal, category string, ref time.Time, shipping decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() && !shipping.IsPositive() {
		return decimal.Zero
	}
	if !c.Valid(ref) || !c.Applicable(category) {
		return decimal.Zero
	}
	return c.amount(subtotal, shipping)
}

// amount computes the raw discount for figures that already passed the
// validity and category gates, clamped into [0, subtotal+shipping].
func (c *Coupon) amount(subtotal, shipping decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Type {
	case TypeValue:
		amount = c.Value
	case TypePercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
	case TypeFreeShipping:
		if c.Value.IsPositive() {
			amount = decimal.Min(c.Value, shipping)
		} else {
			amount = shipping
		}
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal.Add(shipping)).Round(2)
}

// ValidForOrder reports whether the coupon can be applied to an order whose
// lines span the given product categories. A category-restricted coupon needs
// at least one matching line; one eligible item makes the coupon applicable
// to the whole order.
func (c *Coupon) ValidForOrder(categories []string, ref time.Time) bool {
	if !c.Valid(ref) {
		return false
	}
	if len(c.EligibleCategories) == 0 {
		return true
	}
	for _, cat := range categories {
		if c.Applicable(cat) {
			return true
		}
	}
	return false
}

// DiscountForOrder computes the order-level discount. The category gate is
// applied once against the order's line categories; one matching line
// unlocks the discount for the whole subtotal.
func (c *Coupon) DiscountForOrder(subtotal, shipping decimal.Decimal, categories []string, ref time.Time) decimal.Decimal {
	if !subtotal.IsPositive() && !shipping.IsPositive() {
		return decimal.Zero
	}
	if !c.ValidForOrder(categories, ref) {
		return decimal.Zero
	}
	return c.amount(subtotal, shipping)
}

// RegisterUse increments the use counter. It fails once the coupon is at its
// maximum, keeping Uses <= MaxUses at all times.
func (c *Coupon) RegisterUse() error {
	if c.Uses >= c.MaxUses {
		return ErrUsageLimitExceeded
	}
	c.Uses++
	return nil
}

func normalizeCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	// FindByCode looks up a coupon by code, case-insensitively.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Save(ctx context.Context, c *Coupon) error
	// IncrementUses atomically bumps the stored use counter.
	IncrementUses(ctx context.Context, code string) error
}
