// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// IdempotencyTTL is how long cached submission responses are replayed.
// Fixed by the gateway contract, not configurable.
const IdempotencyTTL = 10 * time.Minute

// Config holds the immutable gateway settings. Loaded once at startup and
// passed explicitly to each component.
type Config struct {
	Port              string
	MetricsPort       string
	AuthToken         string // empty disables auth
	ShutdownDrainWait time.Duration

	// Flink cluster
	FlinkRESTURL       string // base REST endpoint, no trailing slash
	ApplicationName    string // name filter when scanning /jobs/overview
	ApplicationJobID   string // existing target job, takes precedence
	ApplicationJarPath string // deployable jar, launched when no job id
	EntryClass         string
	ProgramArgs        []string
	StatementEndpoint  string // optional override for statement dispatch
	LogsBaseURL        string

	HTTPTimeout         time.Duration
	IdempotencyWait     time.Duration // bounded wait behind a single-flight claim
	StderrTruncateBytes int

	// Rate limiting (0 disables)
	RateLimitRPS   float64
	RateLimitBurst int

	// Webhook notifications (empty URL disables)
	CallbackURL        string
	CallbackSigningKey string
}

// Load reads gateway configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		AuthToken:         loadAuthToken(),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),

		FlinkRESTURL:       strings.TrimRight(GetEnv("FLINK_REST_URL", "http://jobmanager:8081"), "/"),
		ApplicationName:    GetEnv("FLINK_APPLICATION_NAME", "sql-runner"),
		ApplicationJobID:   GetEnv("FLINK_APPLICATION_JOB_ID", ""),
		ApplicationJarPath: GetEnv("FLINK_APPLICATION_JAR_PATH", ""),
		EntryClass:         GetEnv("FLINK_APPLICATION_ENTRY_CLASS", ""),
		ProgramArgs:        GetListEnv("FLINK_APPLICATION_PROGRAM_ARGS"),
		StatementEndpoint:  GetEnv("FLINK_STATEMENT_ENDPOINT", ""),
		LogsBaseURL:        GetEnv("FLINK_LOGS_BASE_URL", ""),

		HTTPTimeout:         GetDurationEnv("HTTP_TIMEOUT", 10*time.Second),
		IdempotencyWait:     GetDurationEnv("IDEMPOTENCY_WAIT_TIMEOUT", 30*time.Second),
		StderrTruncateBytes: GetIntEnv("STDERR_TRUNCATE_BYTES", 2048),

		RateLimitRPS:   GetFloatEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst: GetIntEnv("RATE_LIMIT_BURST", 20),

		CallbackURL:        GetEnv("CALLBACK_URL", ""),
		CallbackSigningKey: GetSecretFile(GetEnv("CALLBACK_SIGNING_KEY_FILE", "")),
	}

	if _, err := url.Parse(cfg.FlinkRESTURL); err != nil {
		return nil, fmt.Errorf("invalid FLINK_REST_URL: %w", err)
	}

	if cfg.ApplicationJobID != "" && cfg.ApplicationJarPath != "" {
		// Job id and jar path are mutually exclusive; an explicit job id wins.
		slog.Warn("Both FLINK_APPLICATION_JOB_ID and FLINK_APPLICATION_JAR_PATH set, using job id",
			"jobId", cfg.ApplicationJobID)
		cfg.ApplicationJarPath = ""
	}

	return cfg, nil
}

// HasTarget reports whether a job target can be resolved at all. A gateway
// without a target still serves health checks but fails every submission
// with no_target_configured.
func (c *Config) HasTarget() bool {
	return c.ApplicationJobID != "" || c.ApplicationJarPath != ""
}

// loadAuthToken prefers a secret file over a literal env value.
func loadAuthToken() string {
	if token := GetSecretFile(GetEnv("AUTH_TOKEN_FILE", "")); token != "" {
		return token
	}
	return GetEnv("AUTH_TOKEN", "")
}
