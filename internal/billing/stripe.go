// Package billing ingests payment-provider webhooks and keeps the user's plan
// field in step with their subscription.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/helioslabs/userhub/domain"
	"github.com/helioslabs/userhub/services"
)

// MetadataKeyClerkUserID is the subscription metadata key carrying the
// identity id, set by the dashboard at checkout.
const MetadataKeyClerkUserID = "clerk_user_id"

// ErrInvalidSignature rejects deliveries that fail signature verification.
var ErrInvalidSignature = errors.New("stripe signature invalid")

// ActionPlanChanged tags plan flips in the activity log.
const ActionPlanChanged = "user.plan_changed"

// Processor verifies Stripe webhook deliveries and applies subscription
// events to local user records.
type Processor struct {
	secret   string
	users    domain.UserRepository
	activity services.ActivitySink
}

// NewProcessor creates a Stripe webhook processor.
func NewProcessor(secret string, users domain.UserRepository, activity services.ActivitySink) *Processor {
	return &Processor{secret: secret, users: users, activity: activity}
}

// HandleWebhook verifies one delivery and applies it.
func (p *Processor) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.secret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return p.Process(ctx, event)
}

// Process applies a verified event. Unknown event types are acknowledged, not
// errors; the sender must not retry types this system ignores.
func (p *Processor) Process(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		log.Info().Str("event_type", string(event.Type)).Msg("Ignoring unhandled billing event type")
		return nil
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decoding subscription payload: %w", err)
	}

	clerkID := sub.Metadata[MetadataKeyClerkUserID]
	if clerkID == "" {
		log.Warn().Str("subscription_id", sub.ID).Msg("Subscription carries no identity id, skipping")
		return nil
	}

	plan := domain.PlanFree
	if event.Type != "customer.subscription.deleted" &&
		(sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing) {
		plan = domain.PlanPremium
	}

	existing, err := p.users.FindByClerkID(ctx, clerkID)
	if errors.Is(err, domain.ErrUserNotFound) {
		log.Info().Str("clerk_id", clerkID).Msg("Billing event for unknown user, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user by identity id: %w", err)
	}
	if existing.Plan == plan {
		return nil
	}

	updated, err := p.users.UpdateByClerkID(ctx, clerkID, domain.UserChanges{Plan: &plan})
	if err != nil {
		return fmt.Errorf("updating plan: %w", err)
	}

	if p.activity != nil {
		p.activity.Record(ctx, domain.ActivityLogEntry{
			UserID:   updated.ID,
			Action:   ActionPlanChanged,
			Category: domain.ActivityCategoryIdentity,
			Severity: domain.ActivitySeverityInfo,
			Resource: domain.ActivityResourceUser,
			Details: domain.ActivityDetails{
				Description: fmt.Sprintf("Plan changed to %s", plan),
				Metadata: map[string]any{
					"subscription_id": sub.ID,
					"status":          string(sub.Status),
				},
				Source: domain.ActivitySourceWebhook,
			},
		})
	}
	return nil
}
