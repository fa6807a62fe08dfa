package flink

import (
	"context"
	"log/slog"
	"sync"

	"sqlgateway/internal/apperrors"
	"sqlgateway/internal/artifact"
	"sqlgateway/internal/config"
	"sqlgateway/internal/observability"
)

// Resolver determines the job target that receives forwarded SQL.
//
// Resolution order:
//  1. Explicitly configured job id (no network call)
//  2. A running application job found in the cluster overview
//  3. Launch from the configured jar (at most once per process lifetime,
//     unless the launched job is later reported gone)
//
// The cached target and jar id are the resolver's only mutable state; both
// are guarded by one mutex so concurrent requests cannot race duplicate
// launches. The launch network calls run while the lock is held on purpose.
type Resolver struct {
	client      *Client
	jobID       string
	jar         *artifact.Jar
	entryClass  string
	programArgs []string
	appName     string
	metrics     *observability.Metrics
	logger      *slog.Logger

	mu     sync.Mutex
	target *Target
	jarID  string // uploaded jar id, reused across relaunches
}

// NewResolver creates a resolver from the gateway configuration.
func NewResolver(client *Client, cfg *config.Config, metrics *observability.Metrics) *Resolver {
	r := &Resolver{
		client:      client,
		jobID:       cfg.ApplicationJobID,
		entryClass:  cfg.EntryClass,
		programArgs: cfg.ProgramArgs,
		appName:     cfg.ApplicationName,
		metrics:     metrics,
		logger:      slog.With("component", "resolver"),
	}
	if cfg.ApplicationJarPath != "" {
		r.jar = artifact.NewJar(cfg.ApplicationJarPath)
	}
	return r
}

// Resolve returns the current job target, launching one from the jar if
// needed. Fails with NoTarget when neither a job id nor a jar is configured;
// that path never touches the network.
func (r *Resolver) Resolve(ctx context.Context) (Target, error) {
	if r.jobID != "" {
		return Target{JobID: r.jobID, Source: SourceExisting}, nil
	}
	if r.jar == nil {
		return Target{}, apperrors.NoTarget(
			"no running job target: configure FLINK_APPLICATION_JOB_ID or provide a launchable jar via FLINK_APPLICATION_JAR_PATH")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.target != nil {
		return *r.target, nil
	}

	// Adopt a running application job before launching a duplicate.
	job, err := r.client.FindRunningJob(ctx, r.appName)
	if err != nil {
		return Target{}, err
	}
	if job != nil {
		t := Target{JobID: job.ID, Source: SourceExisting}
		r.target = &t
		r.logger.Info("Adopted running application job", "jobId", job.ID, "state", job.State)
		return t, nil
	}

	t, err := r.launch(ctx)
	if err != nil {
		return Target{}, err
	}
	r.target = &t
	return t, nil
}

// launch uploads the jar (once) and runs it. Caller holds r.mu.
func (r *Resolver) launch(ctx context.Context) (Target, error) {
	if err := r.jar.Validate(); err != nil {
		return Target{}, err
	}

	if r.jarID == "" {
		digest, err := r.jar.SHA256()
		if err != nil {
			return Target{}, err
		}
		jarID, err := r.client.UploadJar(ctx, r.jar)
		if err != nil {
			return Target{}, err
		}
		r.jarID = jarID
		r.logger.Info("Uploaded application jar", "jar", r.jar.Name, "jarId", jarID, "sha256", digest)
	}

	jobID, err := r.client.RunJar(ctx, r.jarID, r.entryClass, r.programArgs)
	if err != nil {
		return Target{}, err
	}

	if r.metrics != nil {
		r.metrics.RecordLaunch(ctx)
	}
	r.logger.Info("Launched application job", "jobId", jobID, "jarId", r.jarID)
	return Target{JobID: jobID, Source: SourceLaunched}, nil
}

// Invalidate clears the cached target after the cluster reported it gone,
// so the next Resolve re-resolves instead of repeating a doomed submission.
// Stale invalidations (a target that is no longer the cached one) are
// no-ops, and an explicitly configured job id is never cleared.
func (r *Resolver) Invalidate(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.target == nil || r.target.JobID != t.JobID {
		return
	}
	r.logger.Warn("Invalidating job target", "jobId", t.JobID, "source", t.Source.String())
	r.target = nil
}
