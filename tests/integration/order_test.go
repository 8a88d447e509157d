//go:build integration

package integration

import (
	"io"
	"net/http"
	"regexp"
	"testing"
)

const testAPIKey = "integration-test-key"

var trackingPattern = regexp.MustCompile(`^[0-9A-F]{12}$`)

func TestCheckout_Totals(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "CANECA-001", 2) // 2x Gopher Mug 35.00 = 70.00
	addToCart(t, c.ID, "LIVRO-001", 1)  // Clean Architecture 99.90

	o := checkout(t, c.ID, "BEMVINDO10")

	if o.Status != "CREATED" {
		t.Errorf("status: got %q, want CREATED", o.Status)
	}
	if o.Subtotal != 169.9 {
		t.Errorf("subtotal: got %v, want 169.9", o.Subtotal)
	}
	// 10% of 169.90
	if o.Discount != 16.99 {
		t.Errorf("discount: got %v, want 16.99", o.Discount)
	}
	if o.ShippingCost != 45.9 {
		t.Errorf("shipping: got %v, want 45.9", o.ShippingCost)
	}
	// 169.90 - 16.99 + 45.90
	if o.Total != 198.81 {
		t.Errorf("total: got %v, want 198.81", o.Total)
	}
	if o.CouponCode != "BEMVINDO10" {
		t.Errorf("coupon: got %q, want BEMVINDO10", o.CouponCode)
	}
}

func TestCheckout_ClearsCart(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 1)
	checkout(t, c.ID, "")

	resp := doPost(t, "/api/orders", map[string]string{"customer_id": c.ID})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second checkout: expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_CategoryCoupon(t *testing.T) {
	c := newTestCustomer(t, "RJ")
	addToCart(t, c.ID, "LIVRO-002", 1) // Domain-Driven Design 129.90

	o := checkout(t, c.ID, "LIVROS25")

	if o.Discount != 25 {
		t.Errorf("discount: got %v, want 25", o.Discount)
	}
	// 129.90 - 25.00 + 45.90
	if o.Total != 150.8 {
		t.Errorf("total: got %v, want 150.8", o.Total)
	}
}

func TestCheckout_FreeShippingCoupon(t *testing.T) {
	c := newTestCustomer(t, "MG")
	addToCart(t, c.ID, "ADES-001", 1) // Sticker Pack 12.50

	o := checkout(t, c.ID, "FRETEGRATIS")

	if o.Discount != 45.9 {
		t.Errorf("discount: got %v, want 45.9", o.Discount)
	}
	if o.Total != 12.5 {
		t.Errorf("total: got %v, want 12.5", o.Total)
	}
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 1)

	resp := doPost(t, "/api/orders", map[string]string{
		"customer_id": c.ID,
		"coupon_code": "NONEXISTENT",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	c := newTestCustomer(t, "SP")

	resp := doPost(t, "/api/orders", map[string]string{"customer_id": c.ID})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestOrder_PaymentLifecycle(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "CANECA-001", 2)
	addToCart(t, c.ID, "LIVRO-001", 1)
	o := checkout(t, c.ID, "BEMVINDO10") // total 198.81

	partial := payOrder(t, o.ID, 100, "PIX")
	if partial.Order.Status != "PARTIALLY_PAID" {
		t.Errorf("status after partial payment: got %q, want PARTIALLY_PAID", partial.Order.Status)
	}
	if partial.Order.Outstanding != 98.81 {
		t.Errorf("outstanding: got %v, want 98.81", partial.Order.Outstanding)
	}
	if !partial.Payment.Confirmed {
		t.Error("payment not confirmed")
	}

	final := payOrder(t, o.ID, 98.81, "CREDIT")
	if final.Order.Status != "PAID" {
		t.Errorf("status after final payment: got %q, want PAID", final.Order.Status)
	}
	if final.Order.Outstanding != 0 {
		t.Errorf("outstanding: got %v, want 0", final.Order.Outstanding)
	}
	if len(final.Order.Payments) != 2 {
		t.Errorf("payments: got %d, want 2", len(final.Order.Payments))
	}
}

func TestOrder_Overpayment(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 1)
	o := checkout(t, c.ID, "") // total 58.40

	resp := doPost(t, "/api/orders/"+o.ID+"/payments", map[string]any{
		"amount": o.Total + 100,
		"method": "PIX",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestOrder_Refund(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 2)
	o := checkout(t, c.ID, "") // total 70.90

	paid := payOrder(t, o.ID, o.Total, "PIX")
	if paid.Order.Status != "PAID" {
		t.Fatalf("status: got %q, want PAID", paid.Order.Status)
	}

	resp := doPost(t, "/api/orders/"+o.ID+"/payments/"+paid.Payment.ID+"/refund", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(resp.Body)
		t.Fatalf("refund: expected 200, got %d: %s", resp.StatusCode, out)
	}

	refunded := decodeJSON[orderResponse](t, resp)
	if refunded.Status != "PENDING_PAYMENT" {
		t.Errorf("status after refund: got %q, want PENDING_PAYMENT", refunded.Status)
	}
	if refunded.TotalPaid != 0 {
		t.Errorf("total paid after refund: got %v, want 0", refunded.TotalPaid)
	}
}

func TestOrder_ShipAndDeliver(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "CAFE-001", 1) // 48.00, total 93.90
	o := checkout(t, c.ID, "")
	payOrder(t, o.ID, o.Total, "PIX")

	// Shipping is a back-office operation.
	noAuth := doPost(t, "/api/orders/"+o.ID+"/ship", nil)
	defer noAuth.Body.Close()
	if noAuth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ship without key: expected 401, got %d", noAuth.StatusCode)
	}

	wrongKey := doPost(t, "/api/orders/"+o.ID+"/ship", nil, "api_key", "wrong-key")
	defer wrongKey.Body.Close()
	if wrongKey.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ship with wrong key: expected 401, got %d", wrongKey.StatusCode)
	}

	shipResp := doPost(t, "/api/orders/"+o.ID+"/ship", nil, "api_key", testAPIKey)
	defer shipResp.Body.Close()
	if shipResp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(shipResp.Body)
		t.Fatalf("ship: expected 200, got %d: %s", shipResp.StatusCode, out)
	}

	shipped := decodeJSON[orderResponse](t, shipResp)
	if shipped.Status != "SHIPPED" {
		t.Errorf("status: got %q, want SHIPPED", shipped.Status)
	}
	if !trackingPattern.MatchString(shipped.TrackingCode) {
		t.Errorf("tracking code %q does not match %s", shipped.TrackingCode, trackingPattern)
	}

	deliverResp := doPost(t, "/api/orders/"+o.ID+"/deliver", nil, "api_key", testAPIKey)
	defer deliverResp.Body.Close()
	if deliverResp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d", deliverResp.StatusCode)
	}

	delivered := decodeJSON[orderResponse](t, deliverResp)
	if delivered.Status != "DELIVERED" {
		t.Errorf("status: got %q, want DELIVERED", delivered.Status)
	}
}

func TestOrder_ShipUnpaid(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 1)
	o := checkout(t, c.ID, "")

	resp := doPost(t, "/api/orders/"+o.ID+"/ship", nil, "api_key", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestOrder_Cancel(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 1)
	o := checkout(t, c.ID, "")

	resp := doPost(t, "/api/orders/"+o.ID+"/cancel", map[string]string{"reason": "changed my mind"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, resp)
	if cancelled.Status != "CANCELLED" {
		t.Errorf("status: got %q, want CANCELLED", cancelled.Status)
	}

	// No payments on a cancelled order.
	pay := doPost(t, "/api/orders/"+o.ID+"/payments", map[string]any{
		"amount": 10,
		"method": "PIX",
	})
	defer pay.Body.Close()
	if pay.StatusCode != http.StatusConflict {
		t.Fatalf("payment after cancel: expected 409, got %d", pay.StatusCode)
	}
}

func TestOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSalesReport(t *testing.T) {
	c := newTestCustomer(t, "SP")
	addToCart(t, c.ID, "ADES-001", 1)
	o := checkout(t, c.ID, "")
	payOrder(t, o.ID, o.Total, "PIX")

	noAuth := doGet(t, "/api/reports/sales")
	defer noAuth.Body.Close()
	if noAuth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("report without key: expected 401, got %d", noAuth.StatusCode)
	}

	resp := doGet(t, "/api/reports/sales", "api_key", testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", resp.StatusCode)
	}

	rep := decodeJSON[salesReportResponse](t, resp)
	if rep.TotalOrders < 1 {
		t.Errorf("total orders: got %d, want >= 1", rep.TotalOrders)
	}
	if rep.Revenue < o.Total {
		t.Errorf("revenue: got %v, want >= %v", rep.Revenue, o.Total)
	}
	if rep.Collected < o.Total {
		t.Errorf("collected: got %v, want >= %v", rep.Collected, o.Total)
	}
}
