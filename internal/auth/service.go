// Package auth manages the session: sign-in, logout, and device push
// registration.
package auth

import (
	"context"
	"fmt"

	"github.com/zonebook/zonebook-go/internal/credential"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/transport"
)

// GoogleSignIn carries the identity returned by the external Google
// sign-in flow. The token exchange itself happens outside this client.
type GoogleSignIn struct {
	GoogleID     string          `json:"googleId"`
	Email        string          `json:"email"`
	Name         string          `json:"name"`
	ProfileImage string          `json:"profileImage,omitempty"`
	Role         credential.Role `json:"role"`
	Verified     bool            `json:"isVerified"`
}

type signInResponse struct {
	Token     string             `json:"token"`
	User      credential.Profile `json:"user"`
	IsNewUser bool               `json:"isNewUser"`
}

// Service executes session operations
type Service struct {
	api   *transport.Executor
	creds credential.Store
	log   logger.Logger
}

// NewService creates the auth service.
func NewService(api *transport.Executor, creds credential.Store, log logger.Logger) *Service {
	return &Service{api: api, creds: creds, log: log}
}

// SignInWithGoogle exchanges the Google identity for a service session
// and persists the resulting token and profile. Returns the profile
// and whether the account was newly created.
func (s *Service) SignInWithGoogle(ctx context.Context, identity GoogleSignIn) (*credential.Profile, bool, error) {
	if identity.GoogleID == "" || identity.Email == "" {
		return nil, false, transport.NewError(transport.KindValidation, "google id and email are required")
	}
	if identity.Role == "" {
		identity.Role = credential.RoleCustomer
	}

	var resp signInResponse
	err := s.api.Execute(ctx, transport.Request{
		Method: "POST",
		Path:   "/api/auth/google",
		Body:   identity,
		Public: true,
	}, &resp)
	if err != nil {
		return nil, false, fmt.Errorf("signing in: %w", err)
	}

	if err := s.creds.SetToken(ctx, resp.Token); err != nil {
		return nil, false, fmt.Errorf("storing token: %w", err)
	}
	if err := s.creds.SetProfile(ctx, &resp.User); err != nil {
		return nil, false, fmt.Errorf("storing profile: %w", err)
	}

	return &resp.User, resp.IsNewUser, nil
}

// Logout ends the session. The remote invalidation is best effort:
// local credential clearing proceeds even when the network call fails,
// so logout never leaves the client stuck signed in.
func (s *Service) Logout(ctx context.Context) error {
	err := s.api.Execute(ctx, transport.Request{
		Method: "POST",
		Path:   "/api/auth/logout",
	}, nil)
	if err != nil {
		s.log.Warn("remote logout failed, clearing local session anyway", "error", err)
	}

	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// RegisterPushToken delivers the device push token through the
// settings-update call.
func (s *Service) RegisterPushToken(ctx context.Context, pushToken string) error {
	if pushToken == "" {
		return transport.NewError(transport.KindValidation, "push token is required")
	}
	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/users/settings",
		Body:   map[string]string{"pushToken": pushToken},
	}, nil)
	if err != nil {
		return fmt.Errorf("registering push token: %w", err)
	}
	return nil
}

// UpdatePreferences stores notification preference flags locally and
// mirrors them to the server settings.
func (s *Service) UpdatePreferences(ctx context.Context, prefs credential.Preferences) error {
	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/users/settings",
		Body: map[string]interface{}{
			"notificationsEnabled": prefs.Enabled,
			"emailNotifications":   prefs.Email,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	if err := s.creds.SetPreferences(ctx, prefs); err != nil {
		return fmt.Errorf("storing preferences: %w", err)
	}
	return nil
}

// CurrentProfile returns the cached profile, or nil when signed out.
func (s *Service) CurrentProfile(ctx context.Context) (*credential.Profile, error) {
	return s.creds.Profile(ctx)
}

// SessionExpired reports whether the stored token is absent or past
// its exp claim.
func (s *Service) SessionExpired(ctx context.Context) (bool, error) {
	token, err := s.creds.Token(ctx)
	if err != nil {
		return false, err
	}
	if token == "" {
		return true, nil
	}
	return credential.TokenExpired(token), nil
}
