// Package credential is the sole source of authentication state: the
// bearer token, the cached user profile, and notification preferences.
package credential

import (
	"context"
	"time"
)

// Role selects which notifications a user sees
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

// Profile is the cached user profile
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Verified  bool      `json:"isVerified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Preferences holds notification preference flags
type Preferences struct {
	Enabled bool `json:"enabled"`
	Email   bool `json:"email"`
}

// Store persists the credential. Token returns an empty string when no
// token is stored; Profile returns nil when no profile is cached.
// Clear always removes local state and never depends on the network.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error

	Profile(ctx context.Context) (*Profile, error)
	SetProfile(ctx context.Context, profile *Profile) error

	Preferences(ctx context.Context) (Preferences, error)
	SetPreferences(ctx context.Context, prefs Preferences) error

	Clear(ctx context.Context) error
}
