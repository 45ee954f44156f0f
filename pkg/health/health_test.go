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

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, statusResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("no checks is healthy", func(t *testing.T) {
		code, body := probe(t, New().LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("passing checks report ok", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("one", time.Second, passingCheck())
		h.AddLivenessCheck("two", time.Second, passingCheck())
		h.Start(context.Background(), time.Minute)
		defer h.Stop()

		code, body := probe(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Checks["one"])
		assert.Equal(t, "ok", body.Checks["two"])
	})

	t.Run("failing check flips to unavailable", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, failingCheck("connection refused"))
		h.liveness[0].run(context.Background())

		code, body := probe(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unavailable", body.Status)
		assert.Equal(t, "connection refused", body.Checks["db"])
	})

	t.Run("check that never ran counts as healthy", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, failingCheck("unreachable"))

		code, _ := probe(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready by default", func(t *testing.T) {
		code, body := probe(t, New().ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unavailable", body.Status)
	})

	t.Run("ready after SetReady", func(t *testing.T) {
		h := New()
		h.SetReady(true)

		code, body := probe(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("SetReady false drains", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		h.SetReady(false)

		code, _ := probe(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("failing readiness check", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		h.AddReadinessCheck("postgres", time.Second, failingCheck("dial timeout"))
		h.readiness[0].run(context.Background())

		code, body := probe(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "dial timeout", body.Checks["postgres"])
	})

	t.Run("recovered check reports ok again", func(t *testing.T) {
		failing := true
		h := New()
		h.SetReady(true)
		h.AddReadinessCheck("flaky", time.Second, func(_ context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		})

		h.readiness[0].run(context.Background())
		code, _ := probe(t, h.ReadyEndpoint)
		require.Equal(t, http.StatusServiceUnavailable, code)

		failing = false
		h.readiness[0].run(context.Background())
		code, body := probe(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Checks["flaky"])
	})
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, passingCheck())
	h.Start(context.Background(), 10*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				w := httptest.NewRecorder()
				h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

				w = httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
