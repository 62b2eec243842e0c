package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_UserCreated(t *testing.T) {
	body := []byte(`{
		"type": "user.created",
		"data": {
			"id": "idp_1",
			"email_addresses": [{"id": "e1", "email_address": "a@x.com"}],
			"primary_email_address_id": "e1",
			"first_name": "A"
		}
	}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)

	created, ok := event.(UserCreatedEvent)
	require.True(t, ok, "expected UserCreatedEvent, got %T", event)
	assert.Equal(t, "idp_1", created.Data.ID)
	assert.Equal(t, "A", created.Data.FirstName)

	email, ok := created.Data.PrimaryEmail()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", email)
}

func TestParseEvent_PrimaryEmailMissing(t *testing.T) {
	payload := UserPayload{
		ID:                    "idp_1",
		EmailAddresses:        []EmailAddress{{ID: "e1", EmailAddress: "a@x.com"}},
		PrimaryEmailAddressID: "e2",
	}
	_, ok := payload.PrimaryEmail()
	assert.False(t, ok)
}

func TestParseEvent_SessionKeepsRawPayload(t *testing.T) {
	body := []byte(`{
		"type": "session.created",
		"data": {"id": "sess_1", "user_id": "idp_1", "client_id": "client_9"}
	}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)

	created, ok := event.(SessionCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "sess_1", created.Data.ID)
	assert.Equal(t, "idp_1", created.Data.UserID)
	assert.Contains(t, string(created.Data.Raw), "client_9")
}

func TestParseEvent_UnknownType(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type": "organization.created", "data": {"id": "org_1"}}`))
	require.NoError(t, err)

	unknown, ok := event.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "organization.created", unknown.Type)
}

func TestParseEvent_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"type": "user.created", "data":`,
		"no type":      `{"data": {"id": "idp_1"}}`,
		"no id":        `{"type": "user.deleted", "data": {}}`,
		"bad payload":  `{"type": "user.created", "data": {"id": 42}}`,
		"bad session payload": `{"type": "session.removed", "data": {"user_id": 1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent([]byte(body))
			assert.Error(t, err)
		})
	}
}
