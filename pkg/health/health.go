// Package health implements liveness and readiness probes for the /livez and
// /readyz endpoints.
//
// Probes run periodically on a single background scheduler. A probe turns
// unhealthy only after three consecutive failures and recovers on the first
// success, so one slow database ping does not take the service out of
// rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const failuresBeforeUnhealthy = 3

// probe wraps a CheckFunc with its flap-damping state. All state is guarded
// by mu; the scheduler writes, the HTTP handlers read.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	fails   int
	healthy bool
	lastErr error
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	// A probe starts healthy so a slow first check does not fail the service
	// during startup.
	return &probe{name: name, timeout: timeout, fn: fn, healthy: true}
}

func (p *probe) execute(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err == nil {
		p.fails = 0
		p.healthy = true
		return
	}
	p.fails++
	if p.fails >= failuresBeforeUnhealthy {
		p.healthy = false
	}
}

// status returns the probe's health and, when unhealthy, the failure message.
func (p *probe) status() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return true, ""
	}
	if p.lastErr != nil {
		return false, p.lastErr.Error()
	}
	return false, "check is unhealthy"
}

// Service runs the registered probes and serves their state over HTTP.
type Service struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	stop      context.CancelFunc
}

// New creates a probe service. It starts not-ready; call SetReady(true) once
// initialization is complete.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a probe for /livez. Liveness failures mean the
// process itself is broken and should be restarted.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a probe for /readyz. Readiness failures mean
// the service should stop receiving traffic until a dependency recovers.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newProbe(name, timeout, fn))
}

// Start launches the background scheduler. All probes run once immediately,
// then every interval. Register all probes before calling Start.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.stop = cancel
	probes := make([]*probe, 0, len(s.liveness)+len(s.readiness))
	probes = append(probes, s.liveness...)
	probes = append(probes, s.readiness...)
	s.mu.Unlock()

	go schedule(ctx, probes, interval)
}

func schedule(ctx context.Context, probes []*probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runAll := func() {
		for _, p := range probes {
			if ctx.Err() != nil {
				return
			}
			p.execute(ctx)
		}
	}

	runAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runAll()
		}
	}
}

// Stop halts the scheduler. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// SetReady flips the manual readiness gate. Graceful shutdown sets it to
// false before draining so load balancers stop routing new requests.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// is passing.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}
	s.mu.RLock()
	probes := s.readiness
	s.mu.RUnlock()
	for _, p := range probes {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness probes pass, 503 with the
// failing probes otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	probes := append([]*probe(nil), s.liveness...)
	s.mu.RUnlock()

	writeProbeResponse(w, failures(probes))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and all
// readiness probes pass, 503 with details otherwise.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	probes := append([]*probe(nil), s.readiness...)
	s.mu.RUnlock()

	failed := failures(probes)
	if !s.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeProbeResponse(w, failed)
}

func failures(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		if ok, msg := p.status(); !ok {
			failed[p.name] = msg
		}
	}
	return failed
}

func writeProbeResponse(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = probeResponse{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	// The status line is already out; an encode error here means the client
	// went away.
	_ = json.NewEncoder(w).Encode(resp)
}
