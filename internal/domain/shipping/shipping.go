package shipping

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/customer"
)

// ErrNoAddress is returned when a shipping estimate is requested for a
// customer without any registered address.
var ErrNoAddress = errors.New("customer has no registered address")

// Rate is the cost and lead time for shipping to one region.
type Rate struct {
	Cost         decimal.Decimal
	LeadTimeDays int
}

// RateTable is the per-region rate configuration. It is loaded once at
// startup and injected into the Estimator; regions absent from the table fall
// back to Default.
type RateTable struct {
	Origin  string
	Regions map[string]Rate
	Default Rate
}

// Quote is the shipping estimate frozen into an order at checkout.
type Quote struct {
	Origin       string
	Destination  string
	Cost         decimal.Decimal
	LeadTimeDays int
}

// Estimator derives shipping quotes from an immutable rate table.
type Estimator struct {
	table RateTable
}

// NewEstimator creates an Estimator over the given rate table.
func NewEstimator(table RateTable) *Estimator {
	return &Estimator{table: table}
}

// Estimate returns the quote for shipping to the given region code. The code
// is trimmed and upper-cased before lookup; unknown regions use the table's
// default rate.
func (e *Estimator) Estimate(region string) (Quote, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if len(region) != 2 {
		return Quote{}, errors.Errorf("destination region must be a 2-letter code, got %q", region)
	}

	rate, ok := e.table.Regions[region]
	if !ok {
		rate = e.table.Default
	}

	return Quote{
		Origin:       e.table.Origin,
		Destination:  region,
		Cost:         rate.Cost,
		LeadTimeDays: rate.LeadTimeDays,
	}, nil
}

// EstimateForCustomer estimates shipping to the customer's first registered
// address.
func (e *Estimator) EstimateForCustomer(c *customer.Customer) (Quote, error) {
	if c == nil || len(c.Addresses) == 0 {
		return Quote{}, ErrNoAddress
	}
	return e.Estimate(c.Addresses[0].Region)
}
