package webhook

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/helioslabs/userhub/domain"
)

// EventHandler receives verified, typed identity events. Each handler is
// responsible for its own atomicity; there is no cross-handler transaction.
type EventHandler interface {
	HandleUserCreated(ctx context.Context, payload domain.UserPayload) error
	HandleUserUpdated(ctx context.Context, payload domain.UserPayload) error
	HandleUserDeleted(ctx context.Context, payload domain.UserDeletedPayload) error
	HandleSessionCreated(ctx context.Context, payload domain.SessionPayload) error
	HandleSessionRemoved(ctx context.Context, payload domain.SessionPayload) error
}

// Router dispatches a verified event to its handler. Unknown event types are
// acknowledged without error so the sender does not retry deliveries this
// system intentionally ignores.
type Router struct {
	handler EventHandler
}

// NewRouter creates a router over the given handler.
func NewRouter(handler EventHandler) *Router {
	return &Router{handler: handler}
}

// Dispatch routes one event. A handler failure propagates to the caller so
// the sender's retry-on-5xx policy governs redelivery.
func (r *Router) Dispatch(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.UserCreatedEvent:
		return r.handler.HandleUserCreated(ctx, e.Data)
	case domain.UserUpdatedEvent:
		return r.handler.HandleUserUpdated(ctx, e.Data)
	case domain.UserDeletedEvent:
		return r.handler.HandleUserDeleted(ctx, e.Data)
	case domain.SessionCreatedEvent:
		return r.handler.HandleSessionCreated(ctx, e.Data)
	case domain.SessionRemovedEvent:
		return r.handler.HandleSessionRemoved(ctx, e.Data)
	case domain.UnknownEvent:
		log.Info().Str("event_type", e.Type).Msg("Ignoring unhandled webhook event type")
		return nil
	default:
		return fmt.Errorf("webhook: unhandled event variant %T", event)
	}
}
