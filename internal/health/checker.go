// Package health provides health check functionality for liveness and readiness probes.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sqlgateway/internal/flink"
)

// ClusterPinger is the interface for readiness checks against the compute cluster.
type ClusterPinger interface {
	Ping(ctx context.Context) error
}

// JobLookup fetches a job by id. (nil, nil) means the cluster does not know
// the job.
type JobLookup interface {
	GetJob(ctx context.Context, jobID string) (*flink.Job, error)
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker performs health checks on dependencies.
type Checker struct {
	cluster ClusterPinger
	jobs    JobLookup
	jobID   string
	timeout time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// NewChecker creates a new health checker.
func NewChecker(cluster ClusterPinger) *Checker {
	return &Checker{
		cluster: cluster,
		timeout: 5 * time.Second,
	}
}

// TrackJob adds a readiness check that the configured target job still
// exists and is running. Statement forwarding never performs this lookup;
// it is an operator-facing signal only.
func (c *Checker) TrackJob(jobs JobLookup, jobID string) {
	c.jobs = jobs
	c.jobID = jobID
}

// Liveness returns true if the service is alive.
// This should be a lightweight check that doesn't depend on external services.
// Failing this probe should trigger a container restart.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{
		Status: StatusHealthy,
	}
}

// Readiness checks if the service is ready to accept traffic.
// This checks all dependencies (the Flink REST endpoint).
// Failing this probe should remove the instance from load balancer rotation.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	// Return unhealthy immediately if shutting down
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}

	// Use cached result if recent (avoid hammering the cluster)
	if c.cachedReady != nil && time.Since(c.lastCheck) < time.Second {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	checks := make(map[string]CheckResult)
	overallStatus := StatusHealthy

	// Check the Flink cluster
	clusterCheck := c.checkCluster(ctx)
	checks["flink"] = clusterCheck
	if clusterCheck.Status != StatusHealthy {
		overallStatus = StatusUnhealthy
	}

	// Check the configured target job, when one is tracked
	if c.jobs != nil && c.jobID != "" {
		jobCheck := c.checkJob(ctx)
		checks["job"] = jobCheck
		if jobCheck.Status != StatusHealthy {
			overallStatus = StatusUnhealthy
		}
	}

	response := &Response{
		Status: overallStatus,
		Checks: checks,
	}

	// Cache the result
	c.mu.Lock()
	c.cachedReady = response
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return response
}

// checkCluster verifies the Flink REST endpoint responds.
func (c *Checker) checkCluster(ctx context.Context) CheckResult {
	if c.cluster == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "cluster client not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.cluster.Ping(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: err.Error(),
		}
	}

	return CheckResult{
		Status: StatusHealthy,
	}
}

// checkJob verifies the tracked job still exists on the cluster and is in a
// state that can accept statements.
func (c *Checker) checkJob(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	job, err := c.jobs.GetJob(ctx, c.jobID)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: err.Error(),
		}
	}
	if job == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("configured job %s not found on the cluster", c.jobID),
		}
	}
	if !job.IsRunning() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("configured job %s is %s", c.jobID, job.State),
		}
	}

	return CheckResult{
		Status: StatusHealthy,
	}
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// SetShuttingDown marks the service as shutting down.
// This causes readiness checks to return unhealthy, signaling
// load balancers to stop sending new traffic.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil // Clear cache to ensure immediate effect
}
