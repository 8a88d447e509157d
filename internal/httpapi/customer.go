package httpapi

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/lojinha-dev/lojinha/internal/domain/customer"
)

type addressRequest struct {
	PostalCode string
	City       string
	Region     string
	Street     string
	Number     string
	Complement string
}

func (a *addressRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "postal_code":
			a.PostalCode, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "region":
			a.Region, err = d.Str()
		case "street":
			a.Street, err = d.Str()
		case "number":
			a.Number, err = d.Str()
		case "complement":
			a.Complement, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type createCustomerRequest struct {
	Name      string
	Email     string
	TaxID     string
	Addresses []addressRequest
}

func (c *createCustomerRequest) decode(r *http.Request) error {
	return decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "tax_id":
			c.TaxID, err = d.Str()
		case "addresses":
			err = d.Arr(func(d *jx.Decoder) error {
				var a addressRequest
				if err := a.decode(d); err != nil {
					return err
				}
				c.Addresses = append(c.Addresses, a)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

type addressResponse struct {
	ID         string `json:"id"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
}

type customerResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	TaxID     string            `json:"tax_id"`
	Addresses []addressResponse `json:"addresses"`
}

func toAddressResponse(a customer.Address) addressResponse {
	return addressResponse{
		ID:         a.ID,
		PostalCode: a.PostalCode,
		City:       a.City,
		Region:     a.Region,
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Complement,
	}
}

func toCustomerResponse(c *customer.Customer) customerResponse {
	resp := customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		TaxID:     c.TaxID,
		Addresses: make([]addressResponse, 0, len(c.Addresses)),
	}
	for _, a := range c.Addresses {
		resp.Addresses = append(resp.Addresses, toAddressResponse(a))
	}
	return resp
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := req.decode(r); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := customer.New(req.Name, req.Email, req.TaxID)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	for _, a := range req.Addresses {
		addr, err := customer.NewAddress(a.PostalCode, a.City, a.Region, a.Street, a.Number, a.Complement)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		c.AddAddress(addr)
	}

	// Registration refuses duplicates of an existing customer.
	matches, err := h.customers.FindMatching(r.Context(), c)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if len(matches) > 0 {
		respondError(w, r, http.StatusConflict, "a customer with this tax id or email already exists")
		return
	}

	if err := h.customers.Save(r.Context(), c); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toCustomerResponse(c))
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCustomerResponse(c))
}
