package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysHealthy(context.Context) error { return nil }

func alwaysFailing(context.Context) error { return errors.New("down") }

func TestProbe_FlapDamping(t *testing.T) {
	p := newProbe("db", time.Second, alwaysFailing)

	ok, _ := p.status()
	require.True(t, ok, "probes start healthy")

	p.execute(context.Background())
	p.execute(context.Background())
	ok, _ = p.status()
	assert.True(t, ok, "two failures are not enough to flip the probe")

	p.execute(context.Background())
	ok, msg := p.status()
	assert.False(t, ok)
	assert.Equal(t, "down", msg)
}

func TestProbe_RecoversOnFirstSuccess(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	p := newProbe("db", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	})

	for range failuresBeforeUnhealthy {
		p.execute(context.Background())
	}
	ok, _ := p.status()
	require.False(t, ok)

	fail.Store(false)
	p.execute(context.Background())
	ok, _ = p.status()
	assert.True(t, ok, "a single success restores health")
}

func TestProbe_Timeout(t *testing.T) {
	p := newProbe("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	for range failuresBeforeUnhealthy {
		p.execute(context.Background())
	}

	ok, msg := p.status()
	assert.False(t, ok)
	assert.Contains(t, msg, "context deadline exceeded")
}

func probeBody(t *testing.T, rec *httptest.ResponseRecorder) probeResponse {
	t.Helper()
	var resp probeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLiveEndpoint(t *testing.T) {
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, alwaysHealthy)
	s.Start(context.Background(), time.Hour)
	defer s.Stop()

	rec := httptest.NewRecorder()
	s.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", probeBody(t, rec).Status)
}

func TestLiveEndpoint_Failure(t *testing.T) {
	s := New()
	s.AddLivenessCheck("broken", time.Second, alwaysFailing)

	ctx := context.Background()
	for _, p := range s.liveness {
		for range failuresBeforeUnhealthy {
			p.execute(ctx)
		}
	}

	rec := httptest.NewRecorder()
	s.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := probeBody(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "down", resp.Checks["broken"])
}

func TestReadyEndpoint_ManualGate(t *testing.T) {
	s := New()

	rec := httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready until SetReady(true)")

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	s.SetReady(false)
	rec = httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, "SetReady(false) drains the service")
}

func TestIsReady(t *testing.T) {
	s := New()
	s.AddReadinessCheck("db", time.Second, alwaysFailing)
	s.SetReady(true)

	assert.True(t, s.IsReady(), "failing probe has not crossed the threshold yet")

	ctx := context.Background()
	for _, p := range s.readiness {
		for range failuresBeforeUnhealthy {
			p.execute(ctx)
		}
	}
	assert.False(t, s.IsReady())
}

func TestStart_RunsProbesImmediately(t *testing.T) {
	var runs atomic.Int32
	s := New()
	s.AddReadinessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background(), time.Hour)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, time.Second, 5*time.Millisecond, "probes run once at startup")
}

func TestStop_HaltsScheduler(t *testing.T) {
	var runs atomic.Int32
	s := New()
	s.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, time.Millisecond)

	s.Stop()
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), after+1, "no further runs after Stop")

	s.Stop() // second Stop is a no-op
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
