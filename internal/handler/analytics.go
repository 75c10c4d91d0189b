package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantpass/internal/domain/analytics"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/export"
)

// salesOverTime encodes buckets as a JSON object keyed by label, keeping
// chronological key order.
type salesOverTime []analytics.Bucket

func (s salesOverTime) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(b.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(b.Total)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type analyticsResponse struct {
	TotalSales           decimal.Decimal `json:"total_sales"`
	TotalOrders          int             `json:"total_orders"`
	TotalUnitsSold       int             `json:"total_units_sold"`
	AverageItemsPerOrder decimal.Decimal `json:"average_items_per_order"`
	AverageOrderValue    decimal.Decimal `json:"average_order_value"`
	SalesOverTime        salesOverTime   `json:"sales_over_time"`
	Transactions         []order.Summary `json:"transactions"`
}

func (h *Handler) salesAnalytics(w http.ResponseWriter, r *http.Request) {
	rep, err := h.analytics.Compute(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		TotalSales:           rep.TotalSales,
		TotalOrders:          rep.TotalOrders,
		TotalUnitsSold:       rep.TotalUnitsSold,
		AverageItemsPerOrder: rep.AverageItemsPerOrder,
		AverageOrderValue:    rep.AverageOrderValue,
		SalesOverTime:        rep.SalesOverTime,
		Transactions:         rep.Orders,
	})
}

type exportResponse struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

func (h *Handler) exportData(w http.ResponseWriter, r *http.Request) {
	orders, err := h.analytics.Export(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	a, err := export.Build(orders, h.now())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{
		Filename:    a.Filename,
		Content:     base64.StdEncoding.EncodeToString(a.Content),
		ContentType: a.ContentType,
	})
}

type clearResponse struct {
	Message      string `json:"message"`
	ClearedCount int    `json:"cleared_count"`
}

func (h *Handler) clearAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.analytics.ClearAll(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{
		Message:      fmt.Sprintf("Successfully cleared %d transactions", n),
		ClearedCount: n,
	})
}
