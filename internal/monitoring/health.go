// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is a named probe run on every health request
type HealthCheck struct {
	Name      string
	Critical  bool
	Timeout   time.Duration
	CheckFunc func(ctx context.Context) HealthCheckResult
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Name     string                 `json:"name"`
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SystemHealth represents overall health information
type SystemHealth struct {
	Status    HealthStatus        `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Version   string              `json:"version,omitempty"`
	Uptime    string              `json:"uptime"`
	Checks    []HealthCheckResult `json:"checks,omitempty"`
}

// HealthManager runs registered checks on demand
type HealthManager struct {
	checks         map[string]*HealthCheck
	mu             sync.RWMutex
	version        string
	started        time.Time
	defaultTimeout time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:         make(map[string]*HealthCheck),
		version:        version,
		started:        time.Now(),
		defaultTimeout: 5 * time.Second,
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.defaultTimeout
	}

	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// Check runs all checks concurrently and aggregates their status.
// A failing critical check makes the system unhealthy; any other failure degrades it.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	results := make([]HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, c *HealthCheck) {
			defer wg.Done()
			results[i] = hm.runCheck(ctx, c)
		}(i, check)
	}
	wg.Wait()

	overall := HealthStatusHealthy
	for i, result := range results {
		if result.Status == HealthStatusHealthy {
			continue
		}
		if checks[i].Critical && result.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
		} else if overall == HealthStatusHealthy {
			overall = HealthStatusDegraded
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	return SystemHealth{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   hm.version,
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    results,
	}
}

// runCheck runs a single health check
func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) HealthCheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := check.CheckFunc(checkCtx)
	result.Name = check.Name
	result.Duration = time.Since(start)
	return result
}

// HealthHandler returns the HTTP handler for the health endpoint
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck creates a database connectivity health check
func DatabaseHealthCheck(name string, ping func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := ping(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "Database connection failed",
					Error:   err.Error(),
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: "Database connection successful",
			}
		},
	}
}

// OutputDirHealthCheck verifies the output root exists and is writable
func OutputDirHealthCheck(root string) *HealthCheck {
	return &HealthCheck{
		Name:     "output_dir",
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			metadata := map[string]interface{}{"path": root}

			if err := os.MkdirAll(root, 0755); err != nil {
				return HealthCheckResult{
					Status:   HealthStatusUnhealthy,
					Message:  "Output directory cannot be created",
					Error:    err.Error(),
					Metadata: metadata,
				}
			}

			probe, err := os.CreateTemp(root, ".health-*")
			if err != nil {
				return HealthCheckResult{
					Status:   HealthStatusUnhealthy,
					Message:  "Output directory is not writable",
					Error:    err.Error(),
					Metadata: metadata,
				}
			}
			probe.Close()
			os.Remove(probe.Name())

			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  "Output directory writable",
				Metadata: metadata,
			}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name:     "goroutines",
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()

			metadata := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}

			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: metadata,
				}
			}

			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("Goroutine count normal: %d", count),
				Metadata: metadata,
			}
		},
	}
}
