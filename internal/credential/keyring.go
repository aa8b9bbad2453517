package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/zonebook/zonebook-go/internal/platform/config"
)

const (
	keyToken       = "token"
	keyProfile     = "profile"
	keyPreferences = "preferences"
)

// KeyringStore persists the credential in the system keyring, falling
// back to an encrypted file backend where no keychain is available.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore opens the keyring for the configured service name.
func NewKeyringStore(cfg config.KeyringConfig) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.ServiceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// Token returns the stored bearer token, or "" when absent.
func (s *KeyringStore) Token(_ context.Context) (string, error) {
	item, err := s.ring.Get(keyToken)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("getting token: %w", err)
	}
	return string(item.Data), nil
}

// SetToken stores the bearer token.
func (s *KeyringStore) SetToken(_ context.Context, token string) error {
	err := s.ring.Set(keyring.Item{Key: keyToken, Data: []byte(token)})
	if err != nil {
		return fmt.Errorf("setting token: %w", err)
	}
	return nil
}

// Profile returns the cached profile, or nil when absent.
func (s *KeyringStore) Profile(_ context.Context) (*Profile, error) {
	item, err := s.ring.Get(keyProfile)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(item.Data, &profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &profile, nil
}

// SetProfile caches the profile.
func (s *KeyringStore) SetProfile(_ context.Context, profile *Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: keyProfile, Data: data}); err != nil {
		return fmt.Errorf("setting profile: %w", err)
	}
	return nil
}

// Preferences returns the stored notification preferences. Absent
// preferences default to enabled.
func (s *KeyringStore) Preferences(_ context.Context) (Preferences, error) {
	item, err := s.ring.Get(keyPreferences)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Preferences{Enabled: true, Email: true}, nil
		}
		return Preferences{}, fmt.Errorf("getting preferences: %w", err)
	}

	var prefs Preferences
	if err := json.Unmarshal(item.Data, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("decoding preferences: %w", err)
	}
	return prefs, nil
}

// SetPreferences stores the notification preferences.
func (s *KeyringStore) SetPreferences(_ context.Context, prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: keyPreferences, Data: data}); err != nil {
		return fmt.Errorf("setting preferences: %w", err)
	}
	return nil
}

// Clear removes all stored credential state. Missing keys are not an
// error; logout must succeed on an already-empty store.
func (s *KeyringStore) Clear(_ context.Context) error {
	for _, key := range []string{keyToken, keyProfile, keyPreferences} {
		if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}
	return nil
}
