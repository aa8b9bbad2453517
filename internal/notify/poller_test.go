package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonebook/zonebook-go/internal/credential"
	"github.com/zonebook/zonebook-go/internal/notify"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
)

func TestNewPollerRejectsInvalidSchedule(t *testing.T) {
	api := newFakeAPI(t)
	s, _ := newEngine(t, api, credential.RoleCustomer)

	_, err := notify.NewPoller(s, "not a schedule", logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refresh schedule")
}

func TestPollerTriggerRefreshes(t *testing.T) {
	api := newFakeAPI(t)
	api.setPage(1, wireRec("a", notify.TypeSystemAnnouncement, false, time.Now(), nil))

	s, _ := newEngine(t, api, credential.RoleCustomer)
	p, err := notify.NewPoller(s, "@every 1h", logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	p.Trigger()
	require.Eventually(t, func() bool {
		return len(s.Records()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollerRestartsAfterStop(t *testing.T) {
	api := newFakeAPI(t)
	api.setPage(0)

	s, _ := newEngine(t, api, credential.RoleCustomer)
	p, err := notify.NewPoller(s, "@every 1h", logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Start())
	p.Trigger()
	require.Eventually(t, func() bool {
		return api.listCallCount() == 1
	}, time.Second, 5*time.Millisecond)
	p.Stop()

	require.NoError(t, p.Start())
	defer p.Stop()
	p.Trigger()
	require.Eventually(t, func() bool {
		return api.listCallCount() == 2
	}, time.Second, 5*time.Millisecond, "a restarted poller must serve triggers again")
}

func TestPollerStartStopIdempotent(t *testing.T) {
	api := newFakeAPI(t)
	api.setPage(0)

	s, _ := newEngine(t, api, credential.RoleCustomer)
	p, err := notify.NewPoller(s, "@every 1h", logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Start())
	require.NoError(t, p.Start())
	p.Stop()
	p.Stop()
}
