// Package health provides health check infrastructure for Kayan Link.
//
// It implements liveness and readiness endpoints for load balancers and
// Kubernetes deployments, with built-in checkers for the database and the
// optional Redis feature-gate cache.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of one checker.
type Check struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) *Check
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.CheckName }

func (c CheckerFunc) Check(ctx context.Context) *Check {
	start := time.Now()
	check := &Check{Name: c.CheckName, Status: StatusHealthy}
	if err := c.Fn(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Error = err.Error()
	}
	check.Latency = time.Since(start)
	return check
}

// NewDatabaseChecker wraps a database ping function as a checker.
func NewDatabaseChecker(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc{CheckName: name, Fn: ping}
}

// NewRedisChecker wraps a redis ping function as a checker.
func NewRedisChecker(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc{CheckName: name, Fn: ping}
}

// Report is the aggregate health of the service.
type Report struct {
	Status  Status   `json:"status"`
	Version string   `json:"version"`
	Checks  []*Check `json:"checks,omitempty"`
}

// Manager runs registered checkers.
type Manager struct {
	mu       sync.RWMutex
	version  string
	timeout  time.Duration
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: 5 * time.Second}
}

func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Report runs every checker concurrently and aggregates.
func (m *Manager) Report(ctx context.Context) *Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	checks := make([]*Check, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			checks[i] = c.Check(ctx)
		}(i, c)
	}
	wg.Wait()

	report := &Report{Status: StatusHealthy, Version: m.version, Checks: checks}
	for _, c := range checks {
		if c.Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}
	return report
}

// LiveHandler always reports the process as up.
func (m *Manager) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// ReadyHandler reports 503 when any dependency check fails.
func (m *Manager) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := m.Report(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
}
