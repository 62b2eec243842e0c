package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Webhook event type tags consumed from the identity provider.
const (
	EventTypeUserCreated    = "user.created"
	EventTypeUserUpdated    = "user.updated"
	EventTypeUserDeleted    = "user.deleted"
	EventTypeSessionCreated = "session.created"
	EventTypeSessionRemoved = "session.removed"
)

// Event is the tagged union over the webhook event kinds this system consumes.
// Payloads are decoded and validated once at the ingress boundary; the router
// switches exhaustively over the concrete types.
type Event interface {
	EventType() string
}

// EmailAddress is one entry of the identity payload's address list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserPayload is the identity payload of user.created and user.updated events.
type UserPayload struct {
	ID                    string          `json:"id"`
	EmailAddresses        []EmailAddress  `json:"email_addresses"`
	PrimaryEmailAddressID string          `json:"primary_email_address_id"`
	FirstName             string          `json:"first_name"`
	LastName              string          `json:"last_name"`
	Username              string          `json:"username"`
	ImageURL              string          `json:"image_url"`
	PrivateMetadata       json.RawMessage `json:"private_metadata,omitempty"`
	UpdatedAt             int64           `json:"updated_at,omitempty"` // ms since epoch
}

// PrimaryEmail resolves the designated primary address from the address list.
func (p *UserPayload) PrimaryEmail() (string, bool) {
	for _, addr := range p.EmailAddresses {
		if addr.ID == p.PrimaryEmailAddressID {
			return addr.EmailAddress, true
		}
	}
	return "", false
}

// UpdatedAtTime converts the payload's millisecond timestamp, falling back to
// now when the event does not carry one.
func (p *UserPayload) UpdatedAtTime() time.Time {
	if p.UpdatedAt <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(p.UpdatedAt).UTC()
}

// UserDeletedPayload is the identity payload of user.deleted events.
type UserDeletedPayload struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// SessionPayload is the payload of session lifecycle events. Raw preserves the
// remainder of the event body as opaque metadata for the activity log.
type SessionPayload struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Raw    json.RawMessage `json:"-"`
}

// UserCreatedEvent signals a new external identity.
type UserCreatedEvent struct{ Data UserPayload }

// UserUpdatedEvent signals a profile change on an existing identity.
type UserUpdatedEvent struct{ Data UserPayload }

// UserDeletedEvent signals the external identity was removed.
type UserDeletedEvent struct{ Data UserDeletedPayload }

// SessionCreatedEvent signals a sign-in at the identity provider.
type SessionCreatedEvent struct{ Data SessionPayload }

// SessionRemovedEvent signals a sign-out at the identity provider.
type SessionRemovedEvent struct{ Data SessionPayload }

// UnknownEvent carries a type tag this system intentionally ignores.
type UnknownEvent struct {
	Type string
	Data json.RawMessage
}

func (UserCreatedEvent) EventType() string    { return EventTypeUserCreated }
func (UserUpdatedEvent) EventType() string    { return EventTypeUserUpdated }
func (UserDeletedEvent) EventType() string    { return EventTypeUserDeleted }
func (SessionCreatedEvent) EventType() string { return EventTypeSessionCreated }
func (SessionRemovedEvent) EventType() string { return EventTypeSessionRemoved }
func (e UnknownEvent) EventType() string      { return e.Type }

type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent decodes a raw webhook body into its typed event. Unknown type
// tags yield an UnknownEvent, not an error; malformed bodies are client errors.
func ParseEvent(body []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event envelope has no type")
	}

	switch env.Type {
	case EventTypeUserCreated, EventTypeUserUpdated:
		var p UserPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s payload has no id", env.Type)
		}
		if env.Type == EventTypeUserCreated {
			return UserCreatedEvent{Data: p}, nil
		}
		return UserUpdatedEvent{Data: p}, nil
	case EventTypeUserDeleted:
		var p UserDeletedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s payload has no id", env.Type)
		}
		return UserDeletedEvent{Data: p}, nil
	case EventTypeSessionCreated, EventTypeSessionRemoved:
		var p SessionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		p.Raw = env.Data
		if env.Type == EventTypeSessionCreated {
			return SessionCreatedEvent{Data: p}, nil
		}
		return SessionRemovedEvent{Data: p}, nil
	default:
		return UnknownEvent{Type: env.Type, Data: env.Data}, nil
	}
}
