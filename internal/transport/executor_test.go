package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonebook/zonebook-go/internal/credential"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/transport"
)

func newExecutor(t *testing.T, baseURL string, creds credential.Store, opts ...transport.Option) *transport.Executor {
	t.Helper()
	base := []transport.Option{
		transport.WithRetryConfig(&transport.RetryConfig{
			MaxAttempts: 3,
			Delay:       time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		}),
	}
	return transport.NewExecutor(baseURL, creds, logger.NewNop(), append(base, opts...)...)
}

func authedStore(t *testing.T) *credential.MemoryStore {
	t.Helper()
	store := credential.NewMemoryStore()
	require.NoError(t, store.SetToken(context.Background(), "test-token"))
	return store
}

func TestExecuteDecodesJSON(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Neon Arena"}`))
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, authedStore(t))

	var out struct {
		Name string `json:"name"`
	}
	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/zones/z1"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Neon Arena", out.Name)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestExecuteRawTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, authedStore(t))

	var out string
	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/health", Public: true}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestExecuteFailsFastWithoutToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, credential.NewMemoryStore())

	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/bookings"}, nil)

	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindAuthRequired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no network call should be made")
}

func TestExecutePublicEndpointWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, credential.NewMemoryStore())

	err := exec.Execute(context.Background(), transport.Request{Method: "POST", Path: "/api/auth/google", Public: true}, nil)
	assert.NoError(t, err)
}

func TestExecute401ClearsCredentials(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"session expired"}`))
	}))
	defer server.Close()

	store := authedStore(t)
	exec := newExecutor(t, server.URL, store)

	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/bookings"}, nil)

	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindAuthExpired))
	assert.Contains(t, err.Error(), "session expired")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "401 must not be retried")

	token, getErr := store.Token(context.Background())
	require.NoError(t, getErr)
	assert.Empty(t, token, "credential store must be cleared before the error surfaces")
}

func TestExecuteTerminalStatusesNotRetried(t *testing.T) {
	tests := []struct {
		status int
		kind   transport.Kind
	}{
		{http.StatusForbidden, transport.KindForbidden},
		{http.StatusNotFound, transport.KindNotFound},
		{http.StatusConflict, transport.KindConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"server says no"}`))
			}))
			defer server.Close()

			exec := newExecutor(t, server.URL, authedStore(t))

			err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/bookings"}, nil)

			require.Error(t, err)
			assert.True(t, transport.IsKind(err, tt.kind))
			assert.Contains(t, err.Error(), "server says no", "server message passes through verbatim")
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestExecute500RetriedThenServerUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, authedStore(t))

	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/bookings"}, nil)

	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindServerUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "exactly max attempts")
}

func TestExecuteRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, authedStore(t))

	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/bookings"}, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecuteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	exec := newExecutor(t, server.URL, authedStore(t),
		transport.WithTimeout(20*time.Millisecond),
		transport.WithRetryConfig(&transport.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond}))

	err := exec.Execute(context.Background(), transport.Request{Method: "GET", Path: "/api/bookings"}, nil)

	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindTimeout))
}

func TestExecuteNoRetrySingleAttempt(t *testing.T) {
	var calls int32
	var gotKey string
	router := mux.NewRouter()
	router.HandleFunc("/api/bookings", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotKey = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusBadGateway)
	}).Methods("POST")

	server := httptest.NewServer(router)
	defer server.Close()

	exec := newExecutor(t, server.URL, authedStore(t))

	err := exec.Execute(context.Background(), transport.Request{
		Method:         "POST",
		Path:           "/api/bookings",
		Body:           map[string]string{"zoneId": "z1"},
		NoRetry:        true,
		IdempotencyKey: "key-123",
	}, nil)

	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindServerUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "creation calls are never auto-retried")
	assert.Equal(t, "key-123", gotKey)
}

func TestErrorKindHelpers(t *testing.T) {
	err := transport.NewError(transport.KindConflict, "slot taken")

	assert.True(t, transport.IsKind(err, transport.KindConflict))
	assert.False(t, transport.IsKind(err, transport.KindNotFound))
	assert.Equal(t, transport.KindConflict, transport.KindOf(err))
	assert.False(t, err.Transient())
	assert.True(t, transport.NewError(transport.KindTimeout, "").Transient())
	assert.True(t, transport.NewError(transport.KindNetwork, "").Transient())
	assert.True(t, transport.NewError(transport.KindServerUnavailable, "").Transient())
}
