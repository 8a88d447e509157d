package customer

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Address is a delivery address owned by exactly one customer. Orders copy it
// as an immutable snapshot at checkout.
type Address struct {
	ID         string
	PostalCode string
	City       string
	Region     string
	Street     string
	Number     string
	Complement string
}

// NewAddress validates and creates an address. The postal code must be an
// 8-digit string, the region a 2-letter code (normalized to upper case).
func NewAddress(postalCode, city, region, street, number, complement string) (Address, error) {
	a := Address{
		ID:         uuid.NewString(),
		PostalCode: strings.TrimSpace(postalCode),
		City:       strings.TrimSpace(city),
		Region:     strings.ToUpper(strings.TrimSpace(region)),
		Street:     strings.TrimSpace(street),
		Number:     strings.TrimSpace(number),
		Complement: strings.TrimSpace(complement),
	}
	if err := validatePostalCode(a.PostalCode); err != nil {
		return Address{}, err
	}
	if a.City == "" {
		return Address{}, errors.New("city must not be empty")
	}
	if len(a.Region) != 2 {
		return Address{}, errors.Errorf("region must be a 2-letter code, got %q", a.Region)
	}
	if a.Street == "" {
		return Address{}, errors.New("street must not be empty")
	}
	if a.Number == "" {
		return Address{}, errors.New("number must not be empty")
	}
	return a, nil
}

// Format renders the address as a single human-readable line.
func (a Address) Format() string {
	s := fmt.Sprintf("%s, %s - %s, %s, %s", a.Street, a.Number, a.City, a.Region, a.PostalCode)
	if a.Complement != "" {
		s += " (" + a.Complement + ")"
	}
	return s
}

func validatePostalCode(code string) error {
	if len(code) != 8 {
		return errors.Errorf("postal code must have exactly 8 digits, got %d", len(code))
	}
	for i := range len(code) {
		if code[i] < '0' || code[i] > '9' {
			return errors.New("postal code must contain only digits")
		}
	}
	return nil
}
