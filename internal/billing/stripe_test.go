package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/helioslabs/userhub/domain"
	"github.com/helioslabs/userhub/services"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) FindByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	args := m.Called(ctx, clerkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) UpdateByClerkID(ctx context.Context, clerkID string, changes domain.UserChanges) (*domain.User, error) {
	args := m.Called(ctx, clerkID, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) DeleteByClerkID(ctx context.Context, clerkID string) error {
	return m.Called(ctx, clerkID).Error(0)
}

func (m *mockUserRepo) List(ctx context.Context, q domain.UserListQuery) ([]*domain.User, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.User), args.Get(1).(int64), args.Error(2)
}

func subscriptionEvent(eventType, status string) stripe.Event {
	raw := fmt.Sprintf(`{
		"id": "sub_1",
		"status": %q,
		"metadata": {"clerk_user_id": "idp_1"}
	}`, status)
	return stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func freeUser() *domain.User {
	return &domain.User{ID: "u1", ClerkID: "idp_1", Email: "a@x.com", Plan: domain.PlanFree}
}

func TestProcess_UpgradeToPremium(t *testing.T) {
	users := new(mockUserRepo)
	var recorded []domain.ActivityLogEntry
	sink := services.ActivitySinkFunc(func(_ context.Context, e domain.ActivityLogEntry) {
		recorded = append(recorded, e)
	})
	proc := NewProcessor("whsec_test", users, sink)

	premium := freeUser()
	premium.Plan = domain.PlanPremium

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(freeUser(), nil)
	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.MatchedBy(func(c domain.UserChanges) bool {
		return c.Plan != nil && *c.Plan == domain.PlanPremium
	})).Return(premium, nil)

	err := proc.Process(context.Background(), subscriptionEvent("customer.subscription.created", "active"))
	require.NoError(t, err)

	require.Len(t, recorded, 1)
	assert.Equal(t, ActionPlanChanged, recorded[0].Action)
	assert.Equal(t, "sub_1", recorded[0].Details.Metadata["subscription_id"])
}

func TestProcess_TrialingCountsAsPremium(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	premium := freeUser()
	premium.Plan = domain.PlanPremium

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(freeUser(), nil)
	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.MatchedBy(func(c domain.UserChanges) bool {
		return c.Plan != nil && *c.Plan == domain.PlanPremium
	})).Return(premium, nil)

	err := proc.Process(context.Background(), subscriptionEvent("customer.subscription.updated", "trialing"))
	assert.NoError(t, err)
	users.AssertExpectations(t)
}

func TestProcess_DowngradeOnDeletion(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	premium := freeUser()
	premium.Plan = domain.PlanPremium

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(premium, nil)
	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.MatchedBy(func(c domain.UserChanges) bool {
		return c.Plan != nil && *c.Plan == domain.PlanFree
	})).Return(freeUser(), nil)

	// Deletion downgrades even though the payload still says active.
	err := proc.Process(context.Background(), subscriptionEvent("customer.subscription.deleted", "active"))
	assert.NoError(t, err)
	users.AssertExpectations(t)
}

func TestProcess_CanceledStatusDowngrades(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	premium := freeUser()
	premium.Plan = domain.PlanPremium

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(premium, nil)
	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.MatchedBy(func(c domain.UserChanges) bool {
		return c.Plan != nil && *c.Plan == domain.PlanFree
	})).Return(freeUser(), nil)

	err := proc.Process(context.Background(), subscriptionEvent("customer.subscription.updated", "canceled"))
	assert.NoError(t, err)
	users.AssertExpectations(t)
}

func TestProcess_PlanUnchangedIsNoop(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(freeUser(), nil)

	err := proc.Process(context.Background(), subscriptionEvent("customer.subscription.updated", "canceled"))
	assert.NoError(t, err)
	users.AssertNotCalled(t, "UpdateByClerkID", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_UnknownUserIsNoop(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(nil, domain.ErrUserNotFound)

	err := proc.Process(context.Background(), subscriptionEvent("customer.subscription.created", "active"))
	assert.NoError(t, err)
}

func TestProcess_UnhandledEventTypeAcknowledged(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	err := proc.Process(context.Background(), stripe.Event{
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	})
	assert.NoError(t, err)
	users.AssertNotCalled(t, "FindByClerkID", mock.Anything, mock.Anything)
}

func TestProcess_MissingIdentityMetadataIsNoop(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	event := stripe.Event{
		Type: "customer.subscription.created",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "sub_1", "status": "active"}`)},
	}
	err := proc.Process(context.Background(), event)
	assert.NoError(t, err)
	users.AssertNotCalled(t, "FindByClerkID", mock.Anything, mock.Anything)
}

func TestHandleWebhook_SignedDelivery(t *testing.T) {
	users := new(mockUserRepo)
	proc := NewProcessor("whsec_test", users, nil)

	premium := freeUser()
	premium.Plan = domain.PlanPremium

	users.On("FindByClerkID", mock.Anything, "idp_1").Return(freeUser(), nil)
	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.MatchedBy(func(c domain.UserChanges) bool {
		return c.Plan != nil && *c.Plan == domain.PlanPremium
	})).Return(premium, nil)

	payload := fmt.Sprintf(`{
		"id": "evt_1",
		"api_version": %q,
		"type": "customer.subscription.created",
		"data": {"object": {"id": "sub_1", "status": "active", "metadata": {"clerk_user_id": "idp_1"}}}
	}`, stripe.APIVersion)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	err := proc.HandleWebhook(context.Background(), signed.Payload, signed.Header)
	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	proc := NewProcessor("whsec_test", new(mockUserRepo), nil)

	err := proc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=garbage")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
