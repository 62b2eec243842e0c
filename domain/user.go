package domain

import "time"

// UserRole defines the role of a user account.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// UserPlan defines the subscription plan of a user account.
type UserPlan string

const (
	PlanFree    UserPlan = "free"
	PlanPremium UserPlan = "premium"
)

// UserStatus defines the possible statuses of a user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusBanned    UserStatus = "banned"
	UserStatusSuspended UserStatus = "suspended"
)

// Preferences holds per-user dashboard settings.
type Preferences struct {
	Theme              string `bson:"theme" json:"theme"`
	Language           string `bson:"language" json:"language"`
	EmailNotifications bool   `bson:"email_notifications" json:"emailNotifications"`
	PushNotifications  bool   `bson:"push_notifications" json:"pushNotifications"`
}

// DefaultPreferences returns the preference block assigned to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:              "system",
		Language:           "en",
		EmailNotifications: true,
		PushNotifications:  false,
	}
}

// UsageStats holds usage counters shown on the dashboard.
type UsageStats struct {
	LoginCount    int64 `bson:"login_count" json:"loginCount"`
	ProjectCount  int64 `bson:"project_count" json:"projectCount"`
	StorageUsedMB int64 `bson:"storage_used_mb" json:"storageUsedMb"`
}

// User represents one account, one-to-one with an external identity.
// Exactly one User exists per ClerkID and per Email at any time; when an
// inbound event carries an unknown ClerkID but a known email, the existing
// document is re-linked rather than duplicated.
type User struct {
	ID          string      `bson:"_id,omitempty" json:"id"`
	ClerkID     string      `bson:"clerk_id" json:"clerkId"`
	Email       string      `bson:"email" json:"email"`
	FirstName   string      `bson:"first_name,omitempty" json:"firstName"`
	LastName    string      `bson:"last_name,omitempty" json:"lastName"`
	Username    string      `bson:"username,omitempty" json:"username"`
	AvatarURL   string      `bson:"avatar_url,omitempty" json:"avatarUrl"`
	Role        UserRole    `bson:"role" json:"role"`
	Plan        UserPlan    `bson:"plan" json:"plan"`
	Status      UserStatus  `bson:"status" json:"status"`
	Preferences Preferences `bson:"preferences" json:"preferences"`
	Stats       UsageStats  `bson:"stats" json:"stats"`
	CreatedAt   time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updatedAt"`
}

// FullName returns the display name used in activity descriptions.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
