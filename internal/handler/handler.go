// Package handler serves the PlantPass REST API on a net/http ServeMux.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/analytics"
	"github.com/xenking/plantpass/internal/domain/auth"
	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/domain/settings"
	"github.com/xenking/plantpass/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// Services are the domain services behind the API.
type Services struct {
	Orders    *order.Service
	Analytics *analytics.Service
	Catalog   *catalog.Service
	Settings  *settings.Service
	Auth      *auth.Service
}

// Handler routes API requests to domain services.
type Handler struct {
	orders    *order.Service
	analytics *analytics.Service
	catalog   *catalog.Service
	settings  *settings.Service
	auth      *auth.Service
	tokens    *auth.TokenIssuer

	throttle httpmiddleware.Middleware
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithThrottle guards the credential endpoints (login, forgot password,
// passphrase verify) with m.
func WithThrottle(m httpmiddleware.Middleware) Option {
	return func(h *Handler) { h.throttle = m }
}

// WithClock overrides time.Now for export file names.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler.
func New(s Services, opts ...Option) *Handler {
	h := &Handler{
		orders:    s.Orders,
		analytics: s.Analytics,
		catalog:   s.Catalog,
		settings:  s.Settings,
		auth:      s.Auth,
		tokens:    s.Auth.Tokens(),
		throttle:  func(next http.Handler) http.Handler { return next },
		now:       time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	staff := h.require(auth.RoleStaff, false)
	admin := h.require(auth.RoleAdmin, false)

	mux.Handle("POST /transactions", staff(h.createOrder))
	mux.HandleFunc("GET /transactions/{id}", h.getOrder)
	mux.Handle("PUT /transactions/{id}", staff(h.updateOrder))
	mux.Handle("DELETE /transactions/{id}", staff(h.deleteOrder))
	mux.Handle("GET /transactions/recent-unpaid", staff(h.recentUnpaid))
	mux.Handle("GET /transactions/sales-analytics", staff(h.salesAnalytics))
	mux.Handle("GET /transactions/export-data", admin(h.exportData))
	mux.Handle("DELETE /transactions/clear-all", admin(h.clearAll))

	mux.HandleFunc("GET /products", h.listProducts)
	mux.Handle("PUT /products", admin(h.replaceProducts))
	mux.HandleFunc("GET /discounts", h.listDiscounts)
	mux.Handle("PUT /discounts", admin(h.replaceDiscounts))
	mux.HandleFunc("GET /payment-methods", h.listPaymentMethods)
	mux.Handle("PUT /payment-methods", admin(h.replacePaymentMethods))

	mux.Handle("POST /admin/login", h.throttle(http.HandlerFunc(h.login)))
	mux.Handle("POST /admin/forgot-password", h.throttle(http.HandlerFunc(h.forgotPassword)))
	mux.Handle("POST /admin/change-password", h.require(auth.RoleAdmin, true)(h.changePassword))

	mux.HandleFunc("GET /feature-toggles", h.getToggles)
	mux.Handle("PUT /feature-toggles", admin(h.putToggles))
	mux.Handle("GET /lock/{resourceType}", admin(h.getLock))
	mux.Handle("PUT /lock/{resourceType}", admin(h.putLock))

	mux.Handle("GET /plantpass-access", admin(h.getPassphrase))
	mux.Handle("PUT /plantpass-access", admin(h.putPassphrase))
	mux.Handle("POST /plantpass-access/verify", h.throttle(http.HandlerFunc(h.verifyPassphrase)))
}

type message struct {
	Message string `json:"message"`
}

type authError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, message{Message: msg})
}

// internalError logs err and answers with an opaque 500.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

var errBadJSON = errors.New("invalid JSON body")

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return typeErr
		}
		return errBadJSON
	}
}

// isTypeError reports whether err came from a JSON value of the wrong type.
func isTypeError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}
