package httpmiddleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	serve(Wrap(okHandler(), mark("a"), mark("b"), mark("c")), http.MethodGet, "/")
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestMakeRouteFinder(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /transactions/{id}", okHandler())
	find := MakeRouteFinder(mux)

	assert.Equal(t, "GET /transactions/{id}", find(httptest.NewRequest(http.MethodGet, "/transactions/ABC-DEF", nil)))
	assert.Empty(t, find(httptest.NewRequest(http.MethodGet, "/nope", nil)))
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
	assert.Equal(t, "close", w.Header().Get("Connection"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := serve(h, http.MethodGet, "/", func(r *http.Request) { r.Header.Set(RequestIDHeader, "req-1") })
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = serve(h, http.MethodGet, "/", func(r *http.Request) { r.Header.Set(RequestIDHeader, "bad\x01id") })
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	serve(h, http.MethodGet, "/", func(r *http.Request) { r.Header.Set(RequestIDHeader, strings.Repeat("x", 200)) })
	assert.Len(t, seen, 36)
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zap.InfoLevel)
	lg := zap.New(core)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Inside")
		w.WriteHeader(http.StatusTeapot)
	})
	h := Wrap(mux, InjectLogger(lg), RequestID(), LogRequests(MakeRouteFinder(mux)))

	serve(h, http.MethodGet, "/products", func(r *http.Request) { r.Header.Set(RequestIDHeader, "req-9") })

	out := buf.String()
	assert.Contains(t, out, `"msg":"Inside"`)
	assert.Contains(t, out, `"msg":"Request rejected"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"route":"GET /products"`)
	assert.Contains(t, out, `"request_id":"req-9"`)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		origin     string
		preflight  bool
		wantOrigin string
		wantCode   int
	}{
		{name: "any origin", origin: "https://till.example", wantOrigin: "*", wantCode: http.StatusOK},
		{
			name:       "listed origin echoes configured case",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Till.example"}},
			origin:     "https://till.example",
			wantOrigin: "https://Till.example",
			wantCode:   http.StatusOK,
		},
		{
			name:     "unlisted origin",
			cfg:      CORSConfig{AllowOrigins: []string{"https://till.example"}},
			origin:   "https://evil.example",
			wantCode: http.StatusOK,
		},
		{
			name:       "credentials echo origin",
			cfg:        CORSConfig{AllowCredentials: true},
			origin:     "https://till.example",
			wantOrigin: "https://till.example",
			wantCode:   http.StatusOK,
		},
		{
			name:       "preflight",
			cfg:        CORSConfig{AllowHeaders: []string{"Authorization", "Content-Type"}, MaxAge: 600},
			origin:     "https://till.example",
			preflight:  true,
			wantOrigin: "*",
			wantCode:   http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			w := serve(CORS(tt.cfg)(okHandler()), method, "/", func(r *http.Request) {
				r.Header.Set("Origin", tt.origin)
				if tt.preflight {
					r.Header.Set("Access-Control-Request-Method", http.MethodPut)
				}
			})
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.preflight {
				assert.Equal(t, "Authorization, Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
				assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
			}
		})
	}
}

func TestThrottler(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	th := NewThrottler(ThrottleConfig{Rate: 1, Burst: 2})
	th.now = func() time.Time { return now }
	h := th.Handler(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/admin/login").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/admin/login").Code)
	w := serve(h, http.MethodPost, "/admin/login")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/admin/login", fromIP("10.9.9.9:1")).Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/admin/login").Code)

	now = now.Add(time.Hour)
	th.allow("other")
	assert.Len(t, th.buckets, 1)
}
