package domain

import "time"

// Activity action tags written by the webhook reconciliation path.
const (
	ActionUserCreated     = "user.created"
	ActionUserUpdated     = "user.updated"
	ActionUserRelinked    = "user.relinked"
	ActionUserReactivated = "user.reactivated"
	ActionUserDeleted     = "user.deleted"
	ActionSessionCreated  = "session.created"
	ActionSessionRemoved  = "session.removed"
)

// Fixed tagging scheme for reconciliation-originated entries.
const (
	ActivityCategoryIdentity = "identity"
	ActivityCategorySession  = "session"
	ActivitySeverityInfo     = "info"
	ActivityResourceUser     = "user"

	// ActivitySourceWebhook marks entries that did not originate from an
	// authenticated HTTP request.
	ActivitySourceWebhook = "webhook"
)

// ActivityDetails carries the human description and opaque metadata of an entry.
type ActivityDetails struct {
	Description string         `bson:"description" json:"description"`
	Metadata    map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Source      string         `bson:"source,omitempty" json:"source,omitempty"`
}

// ActivityLogEntry is an append-only audit record. Entries are write-once and
// hold a non-owning reference to the user; deleting a user does not cascade.
type ActivityLogEntry struct {
	ID        string          `bson:"_id,omitempty" json:"id"`
	UserID    string          `bson:"user_id" json:"userId"`
	Action    string          `bson:"action" json:"action"`
	Category  string          `bson:"category" json:"category"`
	Severity  string          `bson:"severity" json:"severity"`
	Resource  string          `bson:"resource" json:"resource"`
	Details   ActivityDetails `bson:"details" json:"details"`
	CreatedAt time.Time       `bson:"created_at" json:"createdAt"`
}
