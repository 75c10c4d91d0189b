package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig configures a token bucket per client.
type ThrottleConfig struct {
	// Rate is the sustained number of requests per second.
	Rate float64
	// Burst is the bucket size.
	Burst int
	// IdleTTL drops buckets of clients not seen for this long.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttler hands out a token bucket per client IP. It guards the password
// and passphrase endpoints against guessing.
type Throttler struct {
	cfg     ThrottleConfig
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewThrottler creates a Throttler.
func NewThrottler(cfg ThrottleConfig) *Throttler {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Throttler{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

func (t *Throttler) allow(key string) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, b := range t.buckets {
		if now.Sub(b.lastSeen) > t.cfg.IdleTTL {
			delete(t.buckets, k)
		}
	}
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(t.cfg.Rate), t.cfg.Burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Handler wraps a single endpoint.
func (t *Throttler) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(ClientIP(r)) {
			writeMessage(w, http.StatusTooManyRequests, "Too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
