// Package health provides Kubernetes-style liveness and readiness probe
// support for the rental engine.
//
// Probes run on a single background scheduler at a fixed interval. To avoid
// flapping, a probe has to fail failAfter consecutive runs before it is
// reported unhealthy, and pass recoverAfter consecutive runs before it is
// reported healthy again.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. It returns nil when the dependency is
// healthy, or an error describing what is wrong.
type CheckFunc func(ctx context.Context) error

const (
	failAfter    = 3
	recoverAfter = 1
)

// probe is one registered check plus its debounce state. All state is
// guarded by the owning Health's mutex: the scheduler writes it, the HTTP
// endpoints read it.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy bool
	lastErr error
	fails   int
	passes  int
}

// observe folds one probe result into the debounce counters.
func (p *probe) observe(err error) {
	p.lastErr = err
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= failAfter {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= recoverAfter {
		p.healthy = true
	}
}

// Health runs liveness and readiness probes and serves their state over HTTP.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Health service. It starts not-ready; call SetReady(true)
// once initialization has finished.
func New() *Health {
	return &Health{}
}

func (h *Health) add(dst *[]*probe, name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Probes start healthy so a slow dependency does not fail the very first
	// scrape before the scheduler has run.
	*dst = append(*dst, &probe{name: name, timeout: timeout, fn: check, healthy: true})
}

// AddLivenessCheck registers a probe that decides whether the process itself
// is functioning (goroutine leaks, GC pauses). A failing liveness probe
// usually means the process should be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(&h.liveness, name, timeout, check)
}

// AddReadinessCheck registers a probe that decides whether the service can
// take traffic (database reachable, caches warm). A failing readiness probe
// pulls the instance from rotation without restarting it.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(&h.readiness, name, timeout, check)
}

// Start launches the probe scheduler. All probes run once immediately and
// then every interval until the context is cancelled or Stop is called.
// Register all probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		h.runAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.runAll(ctx)
			}
		}
	}()
}

// runAll executes every registered probe once. The check functions run
// outside the mutex; only the result fold-in holds it.
func (h *Health) runAll(ctx context.Context) {
	h.mu.Lock()
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.fn(probeCtx)
		cancel()

		h.mu.Lock()
		p.observe(err)
		h.mu.Unlock()
	}
}

// SetReady flips the manual readiness gate. Call with true after startup
// completes and with false at the beginning of graceful shutdown so load
// balancers stop routing here before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service should receive traffic: the manual
// gate is open and every readiness probe is passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.readiness {
		if !p.healthy {
			return false
		}
	}
	return true
}

// Stop halts the probe scheduler. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// failures returns name -> message for every unhealthy probe in the slice.
// Caller must hold h.mu.
func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if p.healthy {
			continue
		}
		msg := "check is unhealthy"
		if p.lastErr != nil {
			msg = p.lastErr.Error()
		}
		out[p.name] = msg
	}
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while all liveness probes
// pass, 503 with per-check messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	failed := failures(h.liveness)
	h.mu.Unlock()

	writeStatus(w, failed)
}

// ReadyEndpoint serves /readyz: 200 {"status":"ok"} when the manual gate is
// open and all readiness probes pass, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	failed := failures(h.readiness)
	h.mu.Unlock()

	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
