package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/userhub/domain"
	"github.com/helioslabs/userhub/internal/clerk"
)

type stubDirectory struct {
	users []clerk.DirectoryUser
	err   error
}

func (s *stubDirectory) Directory(context.Context) ([]clerk.DirectoryUser, error) {
	return s.users, s.err
}

func strp(s string) *string { return &s }

func TestUserPatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		patch   UserPatch
		wantErr bool
	}{
		{"empty patch", UserPatch{}, false},
		{"valid full", UserPatch{Email: strp("a@x.com"), Name: strp("Jane Doe"), Role: strp("admin"), Plan: strp("premium"), Status: strp("active")}, false},
		{"bad email", UserPatch{Email: strp("nope")}, true},
		{"name too short", UserPatch{Name: strp("J")}, true},
		{"name too long", UserPatch{Name: strp(string(make([]byte, 51)))}, true},
		{"bad role", UserPatch{Role: strp("root")}, true},
		{"bad plan", UserPatch{Plan: strp("enterprise")}, true},
		{"self-service cannot set inactive", UserPatch{Status: strp("inactive")}, true},
		{"empty name", UserPatch{Name: strp("")}, true},
		{"empty email", UserPatch{Email: strp("")}, true},
		{"empty role", UserPatch{Role: strp("")}, true},
		{"empty plan", UserPatch{Plan: strp("")}, true},
		{"empty status", UserPatch{Status: strp("")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateSelf_SplitsNameIntoParts(t *testing.T) {
	users := new(MockUserRepository)
	svc := NewUserService(users, nil)

	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.MatchedBy(func(c domain.UserChanges) bool {
		return c.FirstName != nil && *c.FirstName == "Janet" &&
			c.LastName != nil && *c.LastName == "Q Doe"
	})).Return(activeUser(), nil)

	_, err := svc.UpdateSelf(context.Background(), "idp_1", UserPatch{Name: strp("Janet Q Doe")})
	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestUpdateSelf_InvalidPatchNeverHitsStore(t *testing.T) {
	patches := []UserPatch{
		{Email: strp("nope")},
		{Name: strp("")},
		{Email: strp("")},
		{Status: strp("")},
	}
	for _, patch := range patches {
		users := new(MockUserRepository)
		svc := NewUserService(users, nil)

		_, err := svc.UpdateSelf(context.Background(), "idp_1", patch)
		require.Error(t, err, "%+v", patch)
		assert.True(t, domain.IsValidation(err))
		users.AssertNotCalled(t, "UpdateByClerkID", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestUpdateSelf_DuplicateEmailIsValidationError(t *testing.T) {
	users := new(MockUserRepository)
	svc := NewUserService(users, nil)

	users.On("UpdateByClerkID", mock.Anything, "idp_1", mock.Anything).
		Return(nil, domain.ErrDuplicate)

	_, err := svc.UpdateSelf(context.Background(), "idp_1", UserPatch{Email: strp("taken@x.com")})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestListAdmin_MergesDirectory(t *testing.T) {
	users := new(MockUserRepository)
	signIn := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	dir := &stubDirectory{users: []clerk.DirectoryUser{
		{ID: "idp_1", Banned: true, TwoFactorEnabled: true, LastSignInAt: signIn.UnixMilli()},
	}}
	svc := NewUserService(users, dir)

	local := []*domain.User{activeUser(), {ID: "u2", ClerkID: "idp_2", Email: "b@x.com"}}
	users.On("List", mock.Anything, mock.Anything).Return(local, int64(2), nil)

	page, err := svc.ListAdmin(context.Background(), domain.UserListQuery{Page: 2, PageSize: 25})
	require.NoError(t, err)

	require.Len(t, page.Users, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, int64(2), page.Page)
	assert.Equal(t, int64(25), page.PageSize)

	merged := page.Users[0]
	assert.True(t, merged.Banned)
	assert.True(t, merged.TwoFactorEnabled)
	require.NotNil(t, merged.LastSignInAt)
	assert.Equal(t, signIn, *merged.LastSignInAt)

	// No directory entry for the second user, so provider fields stay zero.
	assert.False(t, page.Users[1].Banned)
	assert.Nil(t, page.Users[1].LastSignInAt)
}

func TestListAdmin_QueryClampsFlowThroughToStore(t *testing.T) {
	users := new(MockUserRepository)
	svc := NewUserService(users, nil)

	users.On("List", mock.Anything, mock.MatchedBy(func(q domain.UserListQuery) bool {
		return q.Page == 1 && q.PageSize == 100
	})).Return([]*domain.User{}, int64(0), nil)

	page, err := svc.ListAdmin(context.Background(), domain.UserListQuery{Page: -1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Page)
	assert.Equal(t, int64(100), page.PageSize)
	users.AssertExpectations(t)
}

func TestListAdmin_DirectoryFailureDegrades(t *testing.T) {
	users := new(MockUserRepository)
	dir := &stubDirectory{err: errors.New("directory down")}
	svc := NewUserService(users, dir)

	users.On("List", mock.Anything, mock.Anything).Return([]*domain.User{activeUser()}, int64(1), nil)

	page, err := svc.ListAdmin(context.Background(), domain.UserListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.False(t, page.Users[0].Banned)
	assert.Equal(t, int64(1), page.Page)
	assert.Equal(t, int64(10), page.PageSize)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in    string
		first string
		last  string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Jane", "Jane", ""},
		{"Jane Q Doe", "Jane", "Q Doe"},
		{"  Jane   Doe  ", "Jane", "Doe"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
