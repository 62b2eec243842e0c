package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helioslabs/userhub/domain"
)

// ActivitySink consumes activity records for auditing. Recording is an
// intentional fire-and-forget boundary: implementations must never surface a
// failure to the caller, the reconciliation outcome does not depend on audit
// durability.
type ActivitySink interface {
	Record(ctx context.Context, entry domain.ActivityLogEntry)
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, entry domain.ActivityLogEntry)

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, entry domain.ActivityLogEntry) {
	if f == nil {
		return
	}
	f(ctx, entry)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, domain.ActivityLogEntry) {}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// mongoActivitySink persists entries through the activity repository on a
// detached goroutine with its own deadline, decoupled from the caller's
// request lifetime. Failures are logged and dropped.
type mongoActivitySink struct {
	repo    domain.ActivityRepository
	timeout time.Duration
}

// NewActivitySink creates the best-effort Mongo-backed sink.
func NewActivitySink(repo domain.ActivityRepository) ActivitySink {
	return &mongoActivitySink{repo: repo, timeout: 5 * time.Second}
}

func (s *mongoActivitySink) Record(_ context.Context, entry domain.ActivityLogEntry) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("action", entry.Action).Msg("Activity sink panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.repo.Append(ctx, &entry); err != nil {
			log.Error().Err(err).
				Str("action", entry.Action).
				Str("user_id", entry.UserID).
				Msg("Failed to write activity log entry")
		}
	}()
}
