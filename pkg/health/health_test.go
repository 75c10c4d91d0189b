package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, Status) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var s Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	return w.Code, s
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passing)
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))

	code, s := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", s.Status)

	db := h.liveness[1]
	db.run(context.Background())
	db.run(context.Background())
	code, _ = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below failure threshold")

	db.run(context.Background())
	code, s = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"db": "connection refused"}, s.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)

	code, s := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, s.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCheckRecovers(t *testing.T) {
	down := true
	c := newCheck("redis", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	for range failureThreshold {
		c.run(context.Background())
	}
	msg, failed := c.failure()
	require.True(t, failed)
	assert.Equal(t, "down", msg)

	down = false
	c.run(context.Background())
	_, failed = c.failure()
	assert.False(t, failed)
}

func TestCheckTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	for range failureThreshold {
		c.run(context.Background())
	}
	msg, failed := c.failure()
	require.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("failing", time.Second, failing("err"))
	h.AddReadinessCheck("passing", time.Second, passing)
	h.SetReady(true)
	h.Start(context.Background(), 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 50 {
				h.IsReady()
				probe(t, h.LiveEndpoint)
				probe(t, h.ReadyEndpoint)
			}
		})
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		return w.Code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pinger{})(ctx))
	assert.Error(t, PingCheck(pinger{err: errors.New("refused")})(ctx))

	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	assert.NoError(t, CapacityCheck("connections", 10, func() int { return 10 })(ctx))
	assert.ErrorContains(t, CapacityCheck("connections", 10, func() int { return 11 })(ctx), "connections 11 exceeds limit 10")
}
