package httpapi

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
)

type cartLineResponse struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

type cartResponse struct {
	ID       string             `json:"id"`
	Lines    []cartLineResponse `json:"lines"`
	Subtotal float64            `json:"subtotal"`
	Units    int                `json:"units"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		ID:       c.ID,
		Lines:    make([]cartLineResponse, 0, len(c.Lines)),
		Subtotal: c.Subtotal().InexactFloat64(),
		Units:    c.Len(),
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			SKU:       l.Product.SKU,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.InexactFloat64(),
			Total:     l.Total().InexactFloat64(),
		})
	}
	return resp
}

type addItemRequest struct {
	SKU      string
	Quantity int
}

func (a *addItemRequest) decode(r *http.Request) error {
	return decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "sku":
			a.SKU, err = d.Str()
		case "quantity":
			a.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (h *Handler) showCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Show(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := req.decode(r); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("id"), req.SKU, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

func (h *Handler) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct{ Quantity int }
	err := decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		if key == "quantity" {
			req.Quantity, err = d.Int()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.SetQuantity(r.Context(), r.PathValue("id"), r.PathValue("sku"), req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("sku"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}
