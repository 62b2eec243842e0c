package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/rs/zerolog/log"

	"github.com/helioslabs/userhub/domain"
	"github.com/helioslabs/userhub/internal/clerk"
)

// DirectoryProvider returns the identity provider's user listing for the
// admin merge.
type DirectoryProvider interface {
	Directory(ctx context.Context) ([]clerk.DirectoryUser, error)
}

// UserPatch is the self-service partial update. Nil fields are untouched.
type UserPatch struct {
	Email  *string `json:"email"`
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Plan   *string `json:"plan"`
	Status *string `json:"status"`
}

// Validate enforces the self-service contract. A field that is present must
// carry a non-empty value; ozzo skips empty values otherwise, which would let
// `""` through the length and enum rules and blank the stored field.
func (p UserPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(2, 50)),
		validation.Field(&p.Role, validation.NilOrNotEmpty, validation.In("admin", "user")),
		validation.Field(&p.Plan, validation.NilOrNotEmpty, validation.In("free", "premium")),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.In("active", "banned", "suspended")),
	)
}

// AdminUserRow is one row of the admin listing: the local record merged with
// the provider's directory entry by identity id.
type AdminUserRow struct {
	domain.User
	LastSignInAt     *time.Time `json:"lastSignInAt,omitempty"`
	Banned           bool       `json:"banned"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
}

// AdminUserPage is one page of the admin listing.
type AdminUserPage struct {
	Users    []AdminUserRow `json:"users"`
	Total    int64          `json:"total"`
	Page     int64          `json:"page"`
	PageSize int64          `json:"pageSize"`
}

// UserService backs the dashboard's self-service and admin endpoints.
type UserService struct {
	users     domain.UserRepository
	directory DirectoryProvider
}

// NewUserService creates a user service. directory may be nil; the admin
// listing then returns local records only.
func NewUserService(users domain.UserRepository, directory DirectoryProvider) *UserService {
	return &UserService{users: users, directory: directory}
}

// UpdateSelf applies a validated partial update to the caller's own record.
func (s *UserService) UpdateSelf(ctx context.Context, clerkID string, patch UserPatch) (*domain.User, error) {
	if err := patch.Validate(); err != nil {
		return nil, domain.NewValidationError("%v", err)
	}

	changes := domain.UserChanges{}
	if patch.Email != nil {
		changes.Email = patch.Email
	}
	if patch.Name != nil {
		first, last := splitName(*patch.Name)
		changes.FirstName = &first
		changes.LastName = &last
	}
	if patch.Role != nil {
		role := domain.UserRole(*patch.Role)
		changes.Role = &role
	}
	if patch.Plan != nil {
		plan := domain.UserPlan(*patch.Plan)
		changes.Plan = &plan
	}
	if patch.Status != nil {
		status := domain.UserStatus(*patch.Status)
		changes.Status = &status
	}

	updated, err := s.users.UpdateByClerkID(ctx, clerkID, changes)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.NewValidationError("email already in use")
		}
		return nil, err
	}
	return updated, nil
}

// DeleteSelf removes the caller's own record. This is the explicit
// user-initiated hard delete; webhook-driven deletion only deactivates.
func (s *UserService) DeleteSelf(ctx context.Context, clerkID string) error {
	return s.users.DeleteByClerkID(ctx, clerkID)
}

// ListAdmin returns one page of users merged with the provider directory.
// Directory failures degrade to local-only rows rather than failing the page.
func (s *UserService) ListAdmin(ctx context.Context, q domain.UserListQuery) (*AdminUserPage, error) {
	q = q.Normalized()
	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	byClerkID := map[string]clerk.DirectoryUser{}
	if s.directory != nil {
		dir, err := s.directory.Directory(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Identity directory unavailable, serving local records only")
		}
		for _, d := range dir {
			byClerkID[d.ID] = d
		}
	}

	out := &AdminUserPage{
		Users:    make([]AdminUserRow, 0, len(users)),
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for _, u := range users {
		row := AdminUserRow{User: *u}
		if d, ok := byClerkID[u.ClerkID]; ok {
			row.Banned = d.Banned
			row.TwoFactorEnabled = d.TwoFactorEnabled
			if d.LastSignInAt > 0 {
				t := time.UnixMilli(d.LastSignInAt).UTC()
				row.LastSignInAt = &t
			}
		}
		out.Users = append(out.Users, row)
	}
	return out, nil
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
