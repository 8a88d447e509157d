package customer

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a registered buyer. Addresses keep insertion order; the first
// one acts as the default delivery address.
type Customer struct {
	ID        string
	Name      string
	Email     string
	TaxID     string
	Addresses []Address
}

// New validates and creates a customer. Email is lowercased, the tax id must
// be exactly 11 digits.
func New(name, email, taxID string) (*Customer, error) {
	c := &Customer{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(name),
		Email: normalizeEmail(email),
		TaxID: strings.TrimSpace(taxID),
	}
	if c.Name == "" {
		return nil, errors.New("name must not be empty")
	}
	if err := validateEmail(c.Email); err != nil {
		return nil, err
	}
	if err := validateTaxID(c.TaxID); err != nil {
		return nil, err
	}
	return c, nil
}

// Matches reports whether two customers are likely the same person: matching
// tax id or matching email. This is a loose duplicate-detection heuristic,
// not identity.
func (c *Customer) Matches(other *Customer) bool {
	if other == nil {
		return false
	}
	return c.TaxID == other.TaxID || c.Email == other.Email
}

// UpdateEmail validates and replaces the customer's email.
func (c *Customer) UpdateEmail(email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	c.Email = email
	return nil
}

// AddAddress appends an address to the customer's list.
func (c *Customer) AddAddress(a Address) {
	c.Addresses = append(c.Addresses, a)
}

// RemoveAddress removes the address with the given id.
func (c *Customer) RemoveAddress(id string) error {
	for i, a := range c.Addresses {
		if a.ID == id {
			c.Addresses = append(c.Addresses[:i], c.Addresses[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("address %s not found", id)
}

// RemoveAddressAt removes the address at the given position.
func (c *Customer) RemoveAddressAt(i int) error {
	if i < 0 || i >= len(c.Addresses) {
		return errors.Errorf("address index %d out of range [0,%d)", i, len(c.Addresses))
	}
	c.Addresses = append(c.Addresses[:i], c.Addresses[i+1:]...)
	return nil
}

// AddressByID returns the address with the given id.
func (c *Customer) AddressByID(id string) (Address, error) {
	for _, a := range c.Addresses {
		if a.ID == id {
			return a, nil
		}
	}
	return Address{}, errors.Errorf("address %s not found", id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return errors.Errorf("invalid email %q", email)
	}
	return nil
}

func validateTaxID(taxID string) error {
	if len(taxID) != 11 {
		return errors.Errorf("tax id must have exactly 11 digits, got %d", len(taxID))
	}
	for i := range len(taxID) {
		if taxID[i] < '0' || taxID[i] > '9' {
			return errors.Errorf("tax id must contain only digits")
		}
	}
	return nil
}

// Repository defines persistence operations for customers and their addresses.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	Save(ctx context.Context, c *Customer) error
	// FindMatching returns stored customers matching c's tax id or email,
	// for duplicate detection at registration time.
	FindMatching(ctx context.Context, c *Customer) ([]*Customer, error)
}
