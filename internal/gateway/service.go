// Package gateway orchestrates a SQL submission end to end: idempotency,
// target resolution, breaker-guarded forwarding, and error mapping.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sqlgateway/internal/apperrors"
	"sqlgateway/internal/flink"
	"sqlgateway/internal/idempotency"
	"sqlgateway/internal/notify"
	"sqlgateway/internal/observability"
	"sqlgateway/pkg/backoff"
	"sqlgateway/pkg/circuitbreaker"
)

var errCircuitOpen = errors.New("circuit open, skipping cluster call")

// Resolver yields the job target that receives forwarded SQL.
type Resolver interface {
	Resolve(ctx context.Context) (flink.Target, error)
	Invalidate(flink.Target)
}

// Forwarder submits a statement to a resolved target.
type Forwarder interface {
	SubmitStatement(ctx context.Context, target flink.Target, stmt flink.Statement) (*flink.JobMetadata, error)
}

// Request is an inbound SQL submission.
type Request struct {
	SQL            string         `json:"sql"`
	Vars           map[string]any `json:"vars"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// Service handles submissions. It is stateless between requests; all shared
// state lives in the idempotency cache and the resolver's cached target.
type Service struct {
	resolver  Resolver
	forwarder Forwarder
	cache     *idempotency.Cache[*flink.JobMetadata]
	breaker   *circuitbreaker.Breaker
	metrics   *observability.Metrics
	notifier  *notify.SubmissionNotifier
	logger    *slog.Logger
}

// NewService creates a submission service. breaker, metrics, and notifier
// may be nil.
func NewService(
	resolver Resolver,
	forwarder Forwarder,
	cache *idempotency.Cache[*flink.JobMetadata],
	breaker *circuitbreaker.Breaker,
	metrics *observability.Metrics,
	notifier *notify.SubmissionNotifier,
) *Service {
	return &Service{
		resolver:  resolver,
		forwarder: forwarder,
		cache:     cache,
		breaker:   breaker,
		metrics:   metrics,
		notifier:  notifier,
		logger:    slog.With("component", "gateway"),
	}
}

// Submit validates and forwards a SQL submission, honoring the idempotency
// key. Sequencing is fixed: cache lookup/claim → resolve → forward → cache
// store. Auth has already happened in the HTTP layer.
func (s *Service) Submit(ctx context.Context, req *Request) (*flink.JobMetadata, error) {
	sql := strings.TrimSpace(req.SQL)
	if sql == "" {
		return nil, apperrors.Validation("sql", "sql statement is required")
	}
	stmt := flink.Statement{SQL: sql, Vars: req.Vars}

	meta, shared, err := s.cache.Do(ctx, req.IdempotencyKey, func(ctx context.Context) (*flink.JobMetadata, error) {
		return s.submit(ctx, stmt)
	})

	if s.metrics != nil && req.IdempotencyKey != "" {
		if shared {
			s.metrics.RecordCacheHit(ctx)
		} else {
			s.metrics.RecordCacheMiss(ctx)
		}
	}
	if shared {
		s.logger.Debug("Replaying stored response", "idempotencyKey", req.IdempotencyKey)
	}
	if errors.Is(err, idempotency.ErrWaitTimeout) {
		return nil, apperrors.RemoteUnavailable("idempotency.wait", err)
	}
	return meta, err
}

// submit is the uncached submission path: one fresh execution per
// idempotency claim.
func (s *Service) submit(ctx context.Context, stmt flink.Statement) (*flink.JobMetadata, error) {
	start := time.Now()
	meta, err := s.attemptWithRetry(ctx, stmt)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		kind := apperrors.Kind(err)
		if s.metrics != nil {
			s.metrics.RecordSubmission(ctx, kind, elapsed)
		}
		s.logger.Error("Submission failed", "kind", kind, "error", err)
		if s.notifier != nil {
			s.notifier.Failed(kind, err.Error())
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSubmission(ctx, "", elapsed)
	}
	s.logger.Info("Statement forwarded", "jobId", meta.JobID, "status", meta.Status)
	if s.notifier != nil {
		s.notifier.Completed(meta)
	}
	return meta, nil
}

// attemptWithRetry retries transient failures exactly once. TargetGone has
// already invalidated the resolver by the time the retry re-resolves, so
// the second attempt goes to a fresh target. Unauthorized, NoTarget, and
// RemoteRejected are never retried.
func (s *Service) attemptWithRetry(ctx context.Context, stmt flink.Statement) (*flink.JobMetadata, error) {
	meta, err := s.attempt(ctx, stmt)
	if err == nil || !retryable(err) {
		return meta, err
	}

	select {
	case <-ctx.Done():
		return nil, apperrors.RemoteUnavailable("submit.retry", ctx.Err())
	case <-time.After(backoff.Exponential(1, nil)):
	}

	s.logger.Warn("Retrying submission after transient failure", "kind", apperrors.Kind(err))
	return s.attempt(ctx, stmt)
}

func (s *Service) attempt(ctx context.Context, stmt flink.Statement) (*flink.JobMetadata, error) {
	target, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	if s.breaker != nil && !s.breaker.Allow() {
		return nil, apperrors.RemoteUnavailable("flink.submitStatement", errCircuitOpen)
	}

	meta, err := s.forwarder.SubmitStatement(ctx, target, stmt)
	if err != nil {
		if errors.Is(err, apperrors.ErrTargetGone) {
			s.resolver.Invalidate(target)
		}
		if s.breaker != nil {
			// Only connectivity failures trip the breaker; a rejection or a
			// gone job means the cluster itself answered.
			if errors.Is(err, apperrors.ErrRemoteUnavailable) {
				s.breaker.RecordFailure()
			} else {
				s.breaker.RecordSuccess()
			}
		}
		return nil, err
	}

	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
	return meta, nil
}

func retryable(err error) bool {
	return errors.Is(err, apperrors.ErrRemoteUnavailable) || errors.Is(err, apperrors.ErrTargetGone)
}
