package httpapi

import (
	"net/http"

	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

type variantResponse struct {
	Kind        string   `json:"kind"`
	DownloadURL string   `json:"download_url,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Depth       *float64 `json:"depth,omitempty"`
}

type productResponse struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    float64         `json:"price"`
	Stock    int             `json:"stock"`
	Active   bool            `json:"active"`
	Variant  variantResponse `json:"variant"`
}

func toProductResponse(p *product.Product) productResponse {
	resp := productResponse{
		SKU:      p.SKU,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price.InexactFloat64(),
		Stock:    p.Stock,
		Active:   p.Active,
		Variant:  variantResponse{Kind: string(p.Variant.Kind)},
	}
	if d := p.Variant.Digital; d != nil {
		// License keys stay server-side until the order is paid.
		resp.Variant.DownloadURL = d.DownloadURL
	}
	if ph := p.Variant.Physical; ph != nil {
		resp.Variant.Weight = &ph.Weight
		resp.Variant.Height = &ph.Height
		resp.Variant.Width = &ph.Width
		resp.Variant.Depth = &ph.Depth
	}
	return resp
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetBySKU(r.Context(), r.PathValue("sku"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toProductResponse(p))
}
