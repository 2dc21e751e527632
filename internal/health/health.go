// Package health reports gateway reachability and draw freshness.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Gateway is the part of the RPC client the checker probes.
// *blockchain.Client implements it.
type Gateway interface {
	Ping(ctx context.Context) (string, error)
	EndpointsHealth() map[string]bool
}

// CheckStatus represents the health status of a component.
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// Response is the JSON body of the health endpoint.
type Response struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check.
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Checker aggregates the gateway check and, in daemon mode, the draw
// schedule check.
type Checker struct {
	gateway  Gateway
	interval time.Duration
	started  time.Time

	mu          sync.RWMutex
	lastRunTime time.Time
	lastRunID   string
	lastRunErr  error
}

// NewChecker creates a checker. interval is zero outside daemon mode.
func NewChecker(gateway Gateway, interval time.Duration) *Checker {
	return &Checker{
		gateway:  gateway,
		interval: interval,
		started:  time.Now(),
	}
}

// RecordRun stores the outcome of the latest draw.
func (c *Checker) RecordRun(runID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRunTime = time.Now()
	c.lastRunID = runID
	c.lastRunErr = err
}

// Check performs all health checks and returns the aggregated status.
func (c *Checker) Check(ctx context.Context) Response {
	checks := make(map[string]CheckDetail)
	overall := StatusOK

	gw := c.checkGateway(ctx)
	checks["gateway"] = gw
	overall = worst(overall, gw.Status)

	if c.interval > 0 {
		draws := c.checkDraws()
		checks["draws"] = draws
		// a stale or failed draw never makes the service unavailable
		if draws.Status != StatusOK {
			overall = worst(overall, StatusDegraded)
		}
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
	}
}

func worst(a, b CheckStatus) CheckStatus {
	rank := map[CheckStatus]int{StatusOK: 0, StatusDegraded: 1, StatusError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func (c *Checker) checkGateway(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url, err := c.gateway.Ping(ctx)
	if err != nil {
		slog.Error("Health check: gateway not responding", "url", url, "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "gateway not responding: " + err.Error(),
		}
	}

	endpoints := c.gateway.EndpointsHealth()
	healthy := 0
	for _, ok := range endpoints {
		if ok {
			healthy++
		}
	}

	if healthy == len(endpoints) {
		return CheckDetail{Status: StatusOK, Message: "all gateway endpoints healthy"}
	}
	return CheckDetail{
		Status:  StatusDegraded,
		Message: fmt.Sprintf("%d/%d gateway endpoints healthy", healthy, len(endpoints)),
	}
}

// checkDraws allows twice the interval between draws.
func (c *Checker) checkDraws() CheckDetail {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastRunTime.IsZero() {
		return CheckDetail{Status: StatusOK, Message: "no draw yet (startup)"}
	}
	if c.lastRunErr != nil {
		return CheckDetail{Status: StatusDegraded, Message: "last draw failed: " + c.lastRunErr.Error()}
	}

	since := time.Since(c.lastRunTime)
	if since > 2*c.interval {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no draw in %s (expected every %s)", since.Round(time.Second), c.interval),
		}
	}
	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("draw %s %s ago", c.lastRunID, since.Round(time.Second)),
	}
}

// Handler serves the health report. An unreachable gateway answers 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Check(r.Context())

		code := http.StatusOK
		if status.Status == StatusError {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
