package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantpass/internal/domain/catalog"
)

type product struct {
	SKU       string           `json:"SKU"`
	Name      string           `json:"item"`
	UnitPrice *decimal.Decimal `json:"price_ea"`
	SortOrder int              `json:"sort_order"`
}

type discount struct {
	Name      string           `json:"name"`
	Kind      string           `json:"type"`
	Rate      *decimal.Decimal `json:"value"`
	SortOrder int              `json:"sort_order"`
}

type paymentMethod struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type replaceResult struct {
	Deleted int `json:"deleted"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type replaceResponse struct {
	Message string        `json:"message"`
	Result  replaceResult `json:"result"`
}

func writeReplaced(w http.ResponseWriter, what string, res catalog.ReplaceResult) {
	writeJSON(w, http.StatusOK, replaceResponse{
		Message: what + " replaced successfully",
		Result:  replaceResult(res),
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Products(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]product, len(list))
	for i, p := range list {
		out[i] = product{SKU: p.SKU, Name: p.Name, UnitPrice: &p.UnitPrice, SortOrder: p.SortOrder}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) replaceProducts(w http.ResponseWriter, r *http.Request) {
	var req []product
	if err := decode(w, r, &req); err != nil || req == nil {
		writeMessage(w, http.StatusBadRequest, "Request body must be a list of products")
		return
	}
	in := make([]catalog.ProductInput, len(req))
	for i, p := range req {
		in[i] = catalog.ProductInput{SKU: p.SKU, Name: p.Name, UnitPrice: p.UnitPrice, SortOrder: p.SortOrder}
	}
	res, err := h.catalog.ReplaceProducts(r.Context(), in)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeReplaced(w, "Products", res)
}

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Discounts(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]discount, len(list))
	for i, d := range list {
		out[i] = discount{Name: d.Name, Kind: string(d.Kind), Rate: &d.Rate, SortOrder: d.SortOrder}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) replaceDiscounts(w http.ResponseWriter, r *http.Request) {
	var req []discount
	if err := decode(w, r, &req); err != nil || req == nil {
		writeMessage(w, http.StatusBadRequest, "Request body must be a list of discounts")
		return
	}
	in := make([]catalog.DiscountInput, len(req))
	for i, d := range req {
		in[i] = catalog.DiscountInput{Name: d.Name, Kind: d.Kind, Rate: d.Rate, SortOrder: d.SortOrder}
	}
	res, err := h.catalog.ReplaceDiscounts(r.Context(), in)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeReplaced(w, "Discounts", res)
}

func (h *Handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.PaymentMethods(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]paymentMethod, len(list))
	for i, m := range list {
		out[i] = paymentMethod(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) replacePaymentMethods(w http.ResponseWriter, r *http.Request) {
	var req []paymentMethod
	if err := decode(w, r, &req); err != nil || req == nil {
		writeMessage(w, http.StatusBadRequest, "Request body must be a list of payment methods")
		return
	}
	in := make([]catalog.PaymentMethodInput, len(req))
	for i, m := range req {
		in[i] = catalog.PaymentMethodInput(m)
	}
	res, err := h.catalog.ReplacePaymentMethods(r.Context(), in)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeReplaced(w, "Payment methods", res)
}
