package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/validation"
)

type itemRequest struct {
	SKU       string          `json:"SKU"`
	Name      string          `json:"item"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price_ea"`
}

type discountRequest struct {
	Name     string          `json:"name"`
	Kind     string          `json:"type"`
	Rate     decimal.Decimal `json:"value"`
	Selected bool            `json:"selected"`
}

type createOrderRequest struct {
	Timestamp int64             `json:"timestamp"`
	Items     []itemRequest     `json:"items"`
	Discounts []discountRequest `json:"discounts"`
	Voucher   decimal.Decimal   `json:"voucher"`
	Email     string            `json:"email"`
}

type paymentRequest struct {
	Method *string `json:"method"`
	Paid   *bool   `json:"paid"`
}

// updateOrderRequest uses pointers so absent fields stay nil.
type updateOrderRequest struct {
	Items     *[]itemRequest     `json:"items"`
	Discounts *[]discountRequest `json:"discounts"`
	Voucher   *decimal.Decimal   `json:"voucher"`
	Payment   *paymentRequest    `json:"payment"`
}

func itemInputs(in []itemRequest) []order.ItemInput {
	out := make([]order.ItemInput, len(in))
	for i, it := range in {
		out[i] = order.ItemInput{SKU: it.SKU, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

func discountInputs(in []discountRequest) []order.DiscountInput {
	out := make([]order.DiscountInput, len(in))
	for i, d := range in {
		out[i] = order.DiscountInput{Name: d.Name, Kind: d.Kind, Rate: d.Rate, Selected: d.Selected}
	}
	return out
}

type orderResponse struct {
	Message     string       `json:"message,omitempty"`
	Transaction *order.Order `json:"transaction"`
}

type invalidOrder struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// orderError maps order service errors to responses.
func orderError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, invalidOrder{Message: "Invalid transaction data", Errors: verr.Messages()})
	case errors.Is(err, order.ErrInvalidID):
		writeMessage(w, http.StatusBadRequest, "Invalid order ID format. Expected format: ABC-DEF")
	case errors.Is(err, order.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, order.ErrIDAllocationExhausted):
		writeMessage(w, http.StatusServiceUnavailable, "Failed to generate unique transaction ID")
	default:
		internalError(w, r, err)
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	o, err := h.orders.Create(r.Context(), order.CreateInput{
		CreatedAt: req.Timestamp,
		Items:     itemInputs(req.Items),
		Discounts: discountInputs(req.Discounts),
		Voucher:   req.Voucher,
		Email:     req.Email,
	})
	if err != nil {
		orderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{Message: "Transaction created successfully", Transaction: o})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		orderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	var in order.UpdateInput
	if req.Items != nil {
		in.Items = itemInputs(*req.Items)
	}
	if req.Discounts != nil {
		in.Discounts = discountInputs(*req.Discounts)
	}
	in.Voucher = req.Voucher
	if req.Payment != nil {
		in.Payment = &order.PaymentPatch{Method: req.Payment.Method, Paid: req.Payment.Paid}
	}

	res, err := h.orders.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		orderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Transaction: res.Order})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		orderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ordersResponse struct {
	Transactions []order.Order `json:"transactions"`
}

func (h *Handler) recentUnpaid(w http.ResponseWriter, r *http.Request) {
	limit := order.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	orders, err := h.orders.ListRecentUnpaid(r.Context(), limit)
	if err != nil {
		orderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponse{Transactions: orders})
}
