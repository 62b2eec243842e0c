package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helioslabs/userhub/domain"
)

// MetadataSyncer pushes a minimal projection of local user state back to the
// identity provider's private metadata store.
type MetadataSyncer interface {
	UpdateUserMetadata(ctx context.Context, userID string, private map[string]any) error
}

// metadataProjection is the {role, plan} block mirrored into the provider's
// private metadata. Equality is checked on the whole projection before
// writing, so replayed events do not produce redundant API calls.
type metadataProjection struct {
	Role string `json:"role"`
	Plan string `json:"plan"`
}

// Reconciler maps identity events onto local user state. It enforces the
// one-user-per-identity and one-user-per-email invariants, treating an email
// match with an unknown identity id as a re-link rather than a new account.
//
// There is no per-user serialization: concurrent events for the same identity
// race at the document store, and the unique indexes are the final backstop.
// A duplicate-key rejection on insert is treated as a benign duplicate.
type Reconciler struct {
	users    domain.UserRepository
	activity ActivitySink
	metadata MetadataSyncer
}

// NewReconciler creates a reconciler. metadata may be nil, in which case the
// provider metadata sync is skipped.
func NewReconciler(users domain.UserRepository, activity ActivitySink, metadata MetadataSyncer) *Reconciler {
	return &Reconciler{
		users:    users,
		activity: normalizeActivitySink(activity),
		metadata: metadata,
	}
}

// HandleUserCreated reconciles a user.created event.
func (r *Reconciler) HandleUserCreated(ctx context.Context, p domain.UserPayload) error {
	email, ok := p.PrimaryEmail()
	if !ok {
		return domain.NewValidationError("no email address matches primary_email_address_id %q", p.PrimaryEmailAddressID)
	}

	existing, err := r.users.FindByClerkID(ctx, p.ID)
	switch {
	case err == nil:
		if existing.Status == domain.UserStatusInactive {
			return r.reactivate(ctx, existing, p)
		}
		// Idempotent replay of an already-active identity.
		log.Debug().Str("clerk_id", p.ID).Msg("user.created replay for active user, nothing to do")
		r.syncMetadata(ctx, p, existing.Role, existing.Plan)
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("looking up user by identity id: %w", err)
	}

	byEmail, err := r.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.relink(ctx, byEmail, p)
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("looking up user by email: %w", err)
	}

	user := &domain.User{
		ClerkID:     p.ID,
		Email:       email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Username:    p.Username,
		AvatarURL:   p.ImageURL,
		Role:        domain.RoleUser,
		Plan:        domain.PlanFree,
		Status:      domain.UserStatusActive,
		Preferences: domain.DefaultPreferences(),
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// A concurrent delivery won the insert race; the unique
			// indexes guarantee the document exists exactly once.
			log.Info().Str("clerk_id", p.ID).Msg("Duplicate creation event, user already exists")
			return nil
		}
		return fmt.Errorf("creating user: %w", err)
	}

	r.record(ctx, user.ID, domain.ActionUserCreated, domain.ActivityCategoryIdentity,
		fmt.Sprintf("Account created for %s", email),
		map[string]any{"clerk_id": p.ID, "email": email})

	r.syncMetadata(ctx, p, user.Role, user.Plan)
	return nil
}

func (r *Reconciler) reactivate(ctx context.Context, existing *domain.User, p domain.UserPayload) error {
	status := domain.UserStatusActive
	updated, err := r.users.UpdateByClerkID(ctx, p.ID, domain.UserChanges{Status: &status})
	if err != nil {
		return fmt.Errorf("reactivating user: %w", err)
	}

	r.record(ctx, updated.ID, domain.ActionUserReactivated, domain.ActivityCategoryIdentity,
		fmt.Sprintf("Account reactivated for %s", updated.Email),
		map[string]any{"clerk_id": p.ID})

	r.syncMetadata(ctx, p, updated.Role, updated.Plan)
	return nil
}

func (r *Reconciler) relink(ctx context.Context, byEmail *domain.User, p domain.UserPayload) error {
	// The external account was deleted and recreated with the same email
	// under a new identity id; adopt the new id instead of duplicating.
	status := domain.UserStatusActive
	updated, err := r.users.UpdateByClerkID(ctx, byEmail.ClerkID, domain.UserChanges{
		ClerkID: &p.ID,
		Status:  &status,
	})
	if err != nil {
		return fmt.Errorf("re-linking user %s: %w", byEmail.ID, err)
	}

	r.record(ctx, updated.ID, domain.ActionUserRelinked, domain.ActivityCategoryIdentity,
		fmt.Sprintf("Account re-linked to new identity for %s", updated.Email),
		map[string]any{"previous_clerk_id": byEmail.ClerkID, "clerk_id": p.ID})

	r.syncMetadata(ctx, p, updated.Role, updated.Plan)
	return nil
}

// HandleUserUpdated reconciles a user.updated event. Empty event fields keep
// the stored value; only non-empty values overwrite.
func (r *Reconciler) HandleUserUpdated(ctx context.Context, p domain.UserPayload) error {
	existing, err := r.users.FindByClerkID(ctx, p.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Out-of-order delivery: the update arrived before its creation
		// was processed. Treat it as a creation.
		return r.HandleUserCreated(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("looking up user by identity id: %w", err)
	}

	changes := domain.UserChanges{}
	changed := map[string]any{}

	if email, ok := p.PrimaryEmail(); ok && email != "" && email != existing.Email {
		changes.Email = &email
		changed["email"] = true
	}
	if p.FirstName != "" && p.FirstName != existing.FirstName {
		changes.FirstName = &p.FirstName
		changed["first_name"] = true
	}
	if p.LastName != "" && p.LastName != existing.LastName {
		changes.LastName = &p.LastName
		changed["last_name"] = true
	}
	if p.Username != "" && p.Username != existing.Username {
		changes.Username = &p.Username
		changed["username"] = true
	}
	if p.ImageURL != "" && p.ImageURL != existing.AvatarURL {
		changes.AvatarURL = &p.ImageURL
		changed["avatar_url"] = true
	}

	updatedAt := p.UpdatedAtTime()
	changes.UpdatedAt = &updatedAt

	updated, err := r.users.UpdateByClerkID(ctx, p.ID, changes)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	r.record(ctx, updated.ID, domain.ActionUserUpdated, domain.ActivityCategoryIdentity,
		fmt.Sprintf("Profile updated for %s", updated.Email),
		map[string]any{"clerk_id": p.ID, "changed": changed})
	return nil
}

// HandleUserDeleted reconciles a user.deleted event with a soft delete. The
// reconciliation path never hard-deletes.
func (r *Reconciler) HandleUserDeleted(ctx context.Context, p domain.UserDeletedPayload) error {
	existing, err := r.users.FindByClerkID(ctx, p.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		log.Info().Str("clerk_id", p.ID).Msg("user.deleted for unknown user, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user by identity id: %w", err)
	}
	if existing.Status == domain.UserStatusInactive {
		log.Debug().Str("clerk_id", p.ID).Msg("user.deleted replay for inactive user, nothing to do")
		return nil
	}

	status := domain.UserStatusInactive
	updated, err := r.users.UpdateByClerkID(ctx, p.ID, domain.UserChanges{Status: &status})
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}

	r.record(ctx, updated.ID, domain.ActionUserDeleted, domain.ActivityCategoryIdentity,
		fmt.Sprintf("Account deactivated for %s", updated.Email),
		map[string]any{"clerk_id": p.ID})
	return nil
}

// HandleSessionCreated records a sign-in against an already-known user.
func (r *Reconciler) HandleSessionCreated(ctx context.Context, p domain.SessionPayload) error {
	user, err := r.users.FindByClerkID(ctx, p.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		log.Info().Str("clerk_id", p.UserID).Str("session_id", p.ID).
			Msg("session.created for unknown user, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user by identity id: %w", err)
	}

	metadata := map[string]any{"session_id": p.ID}
	var rest map[string]any
	if len(p.Raw) > 0 && json.Unmarshal(p.Raw, &rest) == nil {
		delete(rest, "id")
		delete(rest, "user_id")
		if len(rest) > 0 {
			metadata["session"] = rest
		}
	}

	r.record(ctx, user.ID, domain.ActionSessionCreated, domain.ActivityCategorySession,
		fmt.Sprintf("Signed in as %s", user.Email), metadata)
	return nil
}

// HandleSessionRemoved records a sign-out against an already-known user.
func (r *Reconciler) HandleSessionRemoved(ctx context.Context, p domain.SessionPayload) error {
	user, err := r.users.FindByClerkID(ctx, p.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		log.Info().Str("clerk_id", p.UserID).Str("session_id", p.ID).
			Msg("session.removed for unknown user, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user by identity id: %w", err)
	}

	r.record(ctx, user.ID, domain.ActionSessionRemoved, domain.ActivityCategorySession,
		fmt.Sprintf("Signed out %s", user.Email),
		map[string]any{"session_id": p.ID})
	return nil
}

func (r *Reconciler) record(ctx context.Context, userID, action, category, description string, metadata map[string]any) {
	r.activity.Record(ctx, domain.ActivityLogEntry{
		UserID:   userID,
		Action:   action,
		Category: category,
		Severity: domain.ActivitySeverityInfo,
		Resource: domain.ActivityResourceUser,
		Details: domain.ActivityDetails{
			Description: description,
			Metadata:    metadata,
			Source:      domain.ActivitySourceWebhook,
		},
		CreatedAt: time.Now().UTC(),
	})
}

// syncMetadata pushes the {role, plan} projection to the provider when it
// differs from what the event says is already stored. Failures never fail the
// handler.
func (r *Reconciler) syncMetadata(ctx context.Context, p domain.UserPayload, role domain.UserRole, plan domain.UserPlan) {
	if r.metadata == nil {
		return
	}

	desired := metadataProjection{Role: string(role), Plan: string(plan)}
	var stored metadataProjection
	if len(p.PrivateMetadata) > 0 {
		// Best effort decode; an unparsable block just forces a write.
		_ = json.Unmarshal(p.PrivateMetadata, &stored)
	}
	if stored == desired {
		return
	}

	err := r.metadata.UpdateUserMetadata(ctx, p.ID, map[string]any{
		"role": desired.Role,
		"plan": desired.Plan,
	})
	if err != nil {
		log.Warn().Err(err).Str("clerk_id", p.ID).Msg("Failed to sync user metadata to identity provider")
	}
}
