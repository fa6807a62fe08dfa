package notify

import (
	"log/slog"

	"github.com/google/uuid"

	"sqlgateway/internal/flink"
	"sqlgateway/pkg/cloudevent"
)

// Event types emitted for statement submissions.
const (
	EventSubmissionCompleted = "gateway.submission.completed"
	EventSubmissionFailed    = "gateway.submission.failed"
)

const eventSource = "sql-gateway"

// SubmissionNotifier publishes submission lifecycle events as CloudEvents
// to a configured callback URL. Delivery is best-effort: a full buffer is
// logged and the submission proceeds unaffected.
type SubmissionNotifier struct {
	notifier    Notifier
	destination string
	signingKey  string
	logger      *slog.Logger
}

// NewSubmissionNotifier wraps a Notifier with a fixed destination and
// optional signing key.
func NewSubmissionNotifier(n Notifier, destination, signingKey string) *SubmissionNotifier {
	return &SubmissionNotifier{
		notifier:    n,
		destination: destination,
		signingKey:  signingKey,
		logger:      slog.With("component", "notifier"),
	}
}

// Completed publishes an event for a successfully forwarded statement.
func (s *SubmissionNotifier) Completed(meta *flink.JobMetadata) {
	s.publish(EventSubmissionCompleted, meta.JobID, map[string]any{
		"job_id":   meta.JobID,
		"status":   meta.Status,
		"logs_url": meta.LogsURL,
	})
}

// Failed publishes an event for a submission that could not be forwarded.
func (s *SubmissionNotifier) Failed(kind, message string) {
	s.publish(EventSubmissionFailed, kind, map[string]any{
		"kind":    kind,
		"message": message,
	})
}

func (s *SubmissionNotifier) publish(eventType, subject string, data map[string]any) {
	event := cloudevent.New(eventType, eventSource, subject, uuid.New().String(), data)
	if err := s.notifier.Publish(&Event{
		Payload:     event,
		Destination: s.destination,
		SigningKey:  s.signingKey,
	}); err != nil {
		s.logger.Warn("Event not queued", "type", eventType, "error", err)
	}
}
