// Package health provides liveness and readiness endpoints. Checks run on
// demand when a probe hits the endpoint, each bounded by a short timeout.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const checkTimeout = 3 * time.Second

// CheckFunc probes one component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

// Checker aggregates named liveness and readiness checks.
type Checker struct {
	mu        sync.RWMutex
	liveness  map[string]CheckFunc
	readiness map[string]CheckFunc
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		liveness:  make(map[string]CheckFunc),
		readiness: make(map[string]CheckFunc),
	}
}

// AddLiveness registers a liveness check. Liveness failures mean the process
// itself is broken and should be restarted.
func (c *Checker) AddLiveness(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness[name] = check
}

// AddReadiness registers a readiness check. Readiness failures mean the
// process is alive but cannot serve traffic yet.
func (c *Checker) AddReadiness(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness[name] = check
}

// LiveEndpoint serves the liveness probe.
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	checks := c.liveness
	c.mu.RUnlock()
	serve(w, r, checks)
}

// ReadyEndpoint serves the readiness probe. Readiness implies liveness, so
// both sets run.
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.liveness)+len(c.readiness))
	for name, check := range c.liveness {
		checks[name] = check
	}
	for name, check := range c.readiness {
		checks[name] = check
	}
	c.mu.RUnlock()
	serve(w, r, checks)
}

func serve(w http.ResponseWriter, r *http.Request, checks map[string]CheckFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results := make(map[string]string, len(checks))
	healthy := true
	for name, check := range checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy": healthy,
		"checks":  results,
	})
}
