//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 9 {
		t.Fatalf("expected 9 products, got %d", len(products))
	}
}

func TestListProducts_Fields(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)

	var book *productResponse
	for i := range products {
		if products[i].SKU == "LIVRO-001" {
			book = &products[i]
			break
		}
	}

	if book == nil {
		t.Fatal("product LIVRO-001 not found")
	}
	if book.Name != "Clean Architecture" {
		t.Errorf("name: got %q, want %q", book.Name, "Clean Architecture")
	}
	if book.Price != 99.9 {
		t.Errorf("price: got %v, want 99.9", book.Price)
	}
	if book.Category != "books" {
		t.Errorf("category: got %q, want %q", book.Category, "books")
	}
	if !book.Active {
		t.Error("product is not active")
	}
	if book.Variant.Kind != "physical" {
		t.Errorf("variant kind: got %q, want %q", book.Variant.Kind, "physical")
	}
	if book.Variant.Weight == nil || *book.Variant.Weight != 0.6 {
		t.Errorf("variant weight: got %v, want 0.6", book.Variant.Weight)
	}
}

func TestGetProduct_Digital(t *testing.T) {
	resp := doGet(t, "/api/products/EBOOK-001")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	product := decodeJSON[productResponse](t, resp)
	if product.SKU != "EBOOK-001" {
		t.Errorf("sku: got %q, want %q", product.SKU, "EBOOK-001")
	}
	if product.Variant.Kind != "digital" {
		t.Errorf("variant kind: got %q, want %q", product.Variant.Kind, "digital")
	}
	if product.Variant.DownloadURL == "" {
		t.Error("download_url is empty")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/NOPE-999")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
