package sdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonebook/zonebook-go/internal/credential"
	"github.com/zonebook/zonebook-go/internal/platform/config"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/pkg/sdk"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:        baseURL,
			RequestTimeout: 5 * time.Second,
			MaxAttempts:    2,
			RetryDelay:     time.Millisecond,
			MaxRetryDelay:  10 * time.Millisecond,
		},
		Push: config.PushConfig{Enabled: false},
		Sync: config.SyncConfig{PageSize: 50, RefreshSchedule: "@every 1h"},
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig("")
	_, err := sdk.New(cfg, sdk.WithLogger(logger.NewNop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
}

func TestClientLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notifications" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"notifications": []map[string]interface{}{
				{
					"id":        "n1",
					"type":      "system_announcement",
					"title":     "Court maintenance",
					"message":   "Court B closed tomorrow morning",
					"isRead":    false,
					"createdAt": time.Now().UTC().Format(time.RFC3339),
				},
			},
			"unreadCount": 1,
		})
	}))
	defer server.Close()

	store := credential.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "session-token"))
	require.NoError(t, store.SetProfile(ctx, &credential.Profile{ID: "u1", Role: credential.RoleCustomer}))

	client, err := sdk.New(testConfig(server.URL),
		sdk.WithLogger(logger.NewNop()),
		sdk.WithCredentialStore(store),
	)
	require.NoError(t, err)

	changes, cancel := client.Notifications.Subscribe()
	defer cancel()

	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Start(ctx), "Start is idempotent")
	defer client.Close()

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the startup refresh to publish a change")
	}

	records := client.Notifications.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "n1", records[0].ID)
	assert.Equal(t, 1, client.Notifications.UnreadCount())

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestMetricsRegisterAgainstCustomRegistry(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Metrics = config.MetricsConfig{Enabled: true, Namespace: "zonebook_test"}

	registry := prometheus.NewRegistry()
	_, err := sdk.New(cfg,
		sdk.WithLogger(logger.NewNop()),
		sdk.WithCredentialStore(credential.NewMemoryStore()),
		sdk.WithMetricsRegistry(registry),
	)
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)
	// Gauges register eagerly; counters appear after first use.
	assert.NotEmpty(t, families)
}
