// Package health reports whether a triesearch service can do its job. A
// Monitor checks the dependencies of one service in parallel and serves
// the result on the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	// StatusServing means every dependency answered.
	StatusServing Status = "serving"
	// StatusDegraded means an optional dependency, such as the query
	// cache, is missing and the service runs without it.
	StatusDegraded Status = "degraded"
	// StatusUnavailable means a required dependency failed.
	StatusUnavailable Status = "unavailable"
)

// Check tests a single dependency.
type Check func(ctx context.Context) Result

// Result is the outcome of one check.
type Result struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Took   string `json:"took,omitempty"`
}

// Report is the state of a service and each of its dependencies.
type Report struct {
	Service      string            `json:"service"`
	Status       Status            `json:"status"`
	Dependencies map[string]Result `json:"dependencies"`
	CheckedAt    string            `json:"checked_at"`
}

// Monitor holds the checks of one service.
type Monitor struct {
	service string
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
	logger *slog.Logger
}

// NewMonitor creates a Monitor for service whose checks each get timeout to
// answer. A timeout of zero or less means five seconds.
func NewMonitor(service string, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		service: service,
		timeout: timeout,
		checks:  make(map[string]Check),
		logger:  slog.Default().With("component", "health", "service", service),
	}
}

// Watch adds the check of a named dependency, replacing any earlier one.
func (m *Monitor) Watch(dependency string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[dependency] = check
}

type checkResult struct {
	dependency string
	result     Result
}

// Check runs every check concurrently. The service status is the worst
// dependency status.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	m.mu.RUnlock()

	results := make(chan checkResult, len(checks))
	for name, p := range checks {
		go func() {
			pctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			res := p(pctx)
			res.Took = time.Since(start).Round(time.Millisecond).String()
			results <- checkResult{dependency: name, result: res}
		}()
	}

	report := Report{
		Service:      m.service,
		Status:       StatusServing,
		Dependencies: make(map[string]Result, len(checks)),
	}
	for range checks {
		r := <-results
		report.Dependencies[r.dependency] = r.result
		report.Status = worse(report.Status, r.result.Status)
		if r.result.Status != StatusServing {
			m.logger.Warn("dependency not serving",
				"dependency", r.dependency,
				"status", r.result.Status,
				"detail", r.result.Detail,
			)
		}
	}
	report.CheckedAt = time.Now().UTC().Format(time.RFC3339)
	return report
}

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusServing:
			return 0
		case StatusDegraded:
			return 1
		default:
			return 2
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// PingCheck turns a ping function into a Check. A failing ping makes the
// service unavailable, or degraded when the dependency is optional. A nil
// ping means the dependency is not configured.
func PingCheck(ping func(ctx context.Context) error, optional bool) Check {
	failed := StatusUnavailable
	if optional {
		failed = StatusDegraded
	}
	return func(ctx context.Context) Result {
		if ping == nil {
			return Result{Status: failed, Detail: "not configured"}
		}
		if err := ping(ctx); err != nil {
			return Result{Status: failed, Detail: err.Error()}
		}
		return Result{Status: StatusServing}
	}
}

// LiveHandler answers as long as the process can serve HTTP.
func (m *Monitor) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"service": m.service,
			"status":  "alive",
		})
	}
}

// ReadyHandler reports 200 while the service is serving or degraded and
// 503 once a required dependency is unavailable.
func (m *Monitor) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := m.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnavailable {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}
