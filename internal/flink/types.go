// Package flink talks to the Flink REST API: it resolves the long-running
// application job that executes SQL and forwards statements to it.
package flink

// Source indicates how a job target was obtained.
type Source int

const (
	// SourceExisting is a job that was already running (configured id or
	// found in the cluster overview). Never re-launched.
	SourceExisting Source = iota
	// SourceLaunched is a job the gateway started from the deployable jar.
	SourceLaunched
)

func (s Source) String() string {
	switch s {
	case SourceExisting:
		return "existing"
	case SourceLaunched:
		return "launched"
	default:
		return "unknown"
	}
}

// Target is the resolved destination for SQL execution. Read-only once
// created; the resolver replaces it wholesale on invalidation.
type Target struct {
	JobID  string
	Source Source
}

// Job is a job as reported by the cluster.
type Job struct {
	ID    string
	State string
	Name  string
}

// States in which a job can accept forwarded statements.
var runningStates = map[string]bool{
	"CREATED":      true,
	"RUNNING":      true,
	"RECONCILING":  true,
	"INITIALIZING": true,
}

// IsRunning reports whether the job is in a state that accepts work.
func (j Job) IsRunning() bool {
	return runningStates[j.State]
}

// Statement is a compiled SQL payload forwarded verbatim. The gateway never
// parses, rewrites, or splits it.
type Statement struct {
	SQL  string         `json:"sql"`
	Vars map[string]any `json:"vars"`
}

// JobMetadata is the normalized success response returned to callers.
type JobMetadata struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	LogsURL string `json:"logs_url"`
}
