package report

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/order"
)

// ProductSales aggregates how one product sold across the reported orders.
type ProductSales struct {
	SKU      string
	Name     string
	Quantity int
	Revenue  decimal.Decimal
}

// RegionSales aggregates billed orders by delivery region.
type RegionSales struct {
	Region  string
	Orders  int
	Revenue decimal.Decimal
}

// Summary is the sales report for a time window. Cancelled orders are counted
// in OrdersByStatus but excluded from every money figure.
type Summary struct {
	From *time.Time
	To   *time.Time

	TotalOrders    int
	OrdersByStatus map[order.Status]int

	Revenue       decimal.Decimal
	Collected     decimal.Decimal
	Outstanding   decimal.Decimal
	DiscountTotal decimal.Decimal
	ShippingTotal decimal.Decimal
	AverageOrder  decimal.Decimal

	TopProducts   []ProductSales
	SalesByRegion []RegionSales
}

// Service builds sales summaries from stored orders.
type Service struct {
	orders order.Repository
}

// NewService creates a report Service over the given order repository.
func NewService(orders order.Repository) *Service {
	return &Service{orders: orders}
}

// Summarize aggregates all orders created inside the given window. Either
// bound may be nil for an open interval. TopProducts keeps the topN best
// sellers; topN <= 0 keeps the full ranking.
func (s *Service) Summarize(ctx context.Context, from, to *time.Time, topN int) (*Summary, error) {
	orders, err := s.orders.List(ctx, order.ListFilter{CreatedFrom: from, CreatedTo: to})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	sum := &Summary{
		From:           from,
		To:             to,
		OrdersByStatus: make(map[order.Status]int),
		Revenue:        decimal.Zero,
		Collected:      decimal.Zero,
		Outstanding:    decimal.Zero,
		DiscountTotal:  decimal.Zero,
		ShippingTotal:  decimal.Zero,
		AverageOrder:   decimal.Zero,
	}

	bySKU := make(map[string]*ProductSales)
	byRegion := make(map[string]*RegionSales)
	billed := 0
	for _, o := range orders {
		sum.TotalOrders++
		sum.OrdersByStatus[o.Status]++
		if o.Status == order.StatusCancelled {
			continue
		}

		billed++
		sum.Revenue = sum.Revenue.Add(o.Total)
		sum.Collected = sum.Collected.Add(o.TotalPaid)
		sum.Outstanding = sum.Outstanding.Add(o.OutstandingBalance())
		sum.DiscountTotal = sum.DiscountTotal.Add(o.Discount)
		sum.ShippingTotal = sum.ShippingTotal.Add(o.ShippingCost)

		rs, ok := byRegion[o.DeliveryAddress.Region]
		if !ok {
			rs = &RegionSales{Region: o.DeliveryAddress.Region, Revenue: decimal.Zero}
			byRegion[o.DeliveryAddress.Region] = rs
		}
		rs.Orders++
		rs.Revenue = rs.Revenue.Add(o.Total)

		for _, l := range o.Lines {
			ps, ok := bySKU[l.SKU]
			if !ok {
				ps = &ProductSales{SKU: l.SKU, Name: l.Name, Revenue: decimal.Zero}
				bySKU[l.SKU] = ps
			}
			ps.Quantity += l.Quantity
			ps.Revenue = ps.Revenue.Add(l.Total())
		}
	}

	if billed > 0 {
		sum.AverageOrder = sum.Revenue.Div(decimal.NewFromInt(int64(billed))).Round(2)
	}

	sum.TopProducts = make([]ProductSales, 0, len(bySKU))
	for _, ps := range bySKU {
		sum.TopProducts = append(sum.TopProducts, *ps)
	}
	sort.Slice(sum.TopProducts, func(i, j int) bool {
		a, b := sum.TopProducts[i], sum.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.SKU < b.SKU
	})
	if topN > 0 && len(sum.TopProducts) > topN {
		sum.TopProducts = sum.TopProducts[:topN]
	}

	sum.SalesByRegion = make([]RegionSales, 0, len(byRegion))
	for _, rs := range byRegion {
		sum.SalesByRegion = append(sum.SalesByRegion, *rs)
	}
	sort.Slice(sum.SalesByRegion, func(i, j int) bool {
		a, b := sum.SalesByRegion[i], sum.SalesByRegion[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Region < b.Region
	})

	return sum, nil
}
