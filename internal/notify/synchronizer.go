package notify

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/zonebook/zonebook-go/internal/credential"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/platform/metrics"
	"github.com/zonebook/zonebook-go/internal/transport"
)

// ChangeKind identifies what happened to the cache
type ChangeKind string

const (
	ChangeReplaced ChangeKind = "replaced"
	ChangeAdded    ChangeKind = "added"
	ChangeRead     ChangeKind = "read"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is delivered to subscribers when the cache mutates. Record is
// set for added/removed changes and nil for whole-cache changes.
type Change struct {
	Kind   ChangeKind
	Record *Record
}

// Synchronizer owns the canonical in-memory notification cache and the
// derived unread counter. Server refreshes atomically replace the
// cache; push events are merged individually; refresh wins on
// conflicting ids.
type Synchronizer struct {
	api      *transport.Executor
	creds    credential.Store
	log      logger.Logger
	metrics  *metrics.Metrics
	pageSize int

	mu         sync.Mutex
	records    []*Record
	unread     int
	refreshing bool
	generation uint64

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// NewSynchronizer creates a synchronizer over the given executor and
// credential store.
func NewSynchronizer(api *transport.Executor, creds credential.Store, log logger.Logger, m *metrics.Metrics, pageSize int) *Synchronizer {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Synchronizer{
		api:      api,
		creds:    creds,
		log:      log,
		metrics:  m,
		pageSize: pageSize,
		subs:     make(map[int]chan Change),
	}
}

type listResponse struct {
	Notifications []*Record  `json:"notifications"`
	UnreadCount   int        `json:"unreadCount"`
	Pagination    pagination `json:"pagination"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Refresh fetches the first page of notifications and atomically
// replaces the cache with the role-filtered result. A refresh already
// in flight makes this a no-op, so two fetches never race to replace
// the cache; the replacement only lands if no newer refresh has
// started since.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		s.countRefresh("in_flight")
		return nil
	}
	s.refreshing = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	role, err := s.activeRole(ctx)
	if err != nil {
		s.countRefresh("failure")
		return err
	}

	query := url.Values{}
	query.Set("page", "1")
	query.Set("limit", strconv.Itoa(s.pageSize))

	var resp listResponse
	err = s.api.Execute(ctx, transport.Request{
		Method: "GET",
		Path:   "/api/notifications",
		Query:  query,
	}, &resp)
	if err != nil {
		s.countRefresh("failure")
		return fmt.Errorf("refreshing notifications: %w", err)
	}

	for _, r := range resp.Notifications {
		r.Ingest()
	}
	filtered := FilterForRole(resp.Notifications, role)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if s.metrics != nil && role == credential.RoleVendor {
		resolved := resolvedBookings(resp.Notifications)
		for _, r := range resp.Notifications {
			if suppressed(r, resolved) {
				s.metrics.SuppressedTotal.Inc()
			}
		}
	}

	unread := 0
	for _, r := range filtered {
		if !r.IsRead {
			unread++
		}
	}

	s.mu.Lock()
	if gen != s.generation {
		// A newer refresh superseded this one; its result wins.
		s.mu.Unlock()
		s.countRefresh("superseded")
		return nil
	}
	s.records = filtered
	s.unread = unread
	s.mu.Unlock()

	s.setUnreadGauge(unread)
	if resp.UnreadCount != unread {
		s.log.Debug("server unread count differs from filtered view",
			"server", resp.UnreadCount, "local", unread)
	}
	s.countRefresh("success")
	s.notify(Change{Kind: ChangeReplaced})
	return nil
}

// HandlePush merges a single push-delivered record into the cache.
// Records failing the role filter and duplicate ids are discarded
// silently, making delivery idempotent. Returns whether the record
// was added.
func (s *Synchronizer) HandlePush(ctx context.Context, rec *Record) bool {
	rec.Ingest()

	role, err := s.activeRole(ctx)
	if err != nil {
		s.log.Warn("dropping push event, no active role", "error", err)
		s.countPush("dropped")
		return false
	}
	if !Visible(rec, role) {
		s.countPush("filtered")
		return false
	}

	s.mu.Lock()
	for _, existing := range s.records {
		if existing.ID == rec.ID {
			s.mu.Unlock()
			s.countPush("duplicate")
			return false
		}
	}
	s.records = append([]*Record{rec}, s.records...)
	if !rec.IsRead {
		s.unread++
	}
	unread := s.unread
	s.mu.Unlock()

	s.setUnreadGauge(unread)
	s.countPush("accepted")
	s.notify(Change{Kind: ChangeAdded, Record: rec})
	return true
}

// MarkAsRead marks the given notifications read on the server, then
// mirrors the change locally. The local cache is only mutated after
// the remote call succeeds.
func (s *Synchronizer) MarkAsRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/notifications/read",
		Body:   map[string][]string{"ids": ids},
	}, nil)
	if err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	s.mu.Lock()
	for _, r := range s.records {
		if wanted[r.ID] && !r.IsRead {
			r.IsRead = true
			s.unread--
		}
	}
	unread := s.unread
	s.mu.Unlock()

	s.setUnreadGauge(unread)
	s.notify(Change{Kind: ChangeRead})
	return nil
}

// MarkAllAsRead marks every notification read on the server, then
// zeroes the local counter.
func (s *Synchronizer) MarkAllAsRead(ctx context.Context) error {
	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/notifications/read-all",
	}, nil)
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}

	s.mu.Lock()
	for _, r := range s.records {
		r.IsRead = true
	}
	s.unread = 0
	s.mu.Unlock()

	s.setUnreadGauge(0)
	s.notify(Change{Kind: ChangeRead})
	return nil
}

// Delete removes a notification on the server, then locally. The
// unread counter only decrements when the removed record was unread.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	err := s.api.Execute(ctx, transport.Request{
		Method: "DELETE",
		Path:   "/api/notifications/" + id,
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}

	var removed *Record
	s.mu.Lock()
	for i, r := range s.records {
		if r.ID == id {
			removed = r
			s.records = append(s.records[:i], s.records[i+1:]...)
			if !r.IsRead {
				s.unread--
			}
			break
		}
	}
	unread := s.unread
	s.mu.Unlock()

	if removed != nil {
		s.setUnreadGauge(unread)
		s.notify(Change{Kind: ChangeRemoved, Record: removed})
	}
	return nil
}

// markReadLocal marks a cached record read without a remote call.
// Used after an action succeeded server-side; the follow-up refresh
// brings the authoritative state.
func (s *Synchronizer) markReadLocal(id string) {
	s.mu.Lock()
	for _, r := range s.records {
		if r.ID == id {
			if !r.IsRead {
				r.IsRead = true
				s.unread--
			}
			break
		}
	}
	unread := s.unread
	s.mu.Unlock()

	s.setUnreadGauge(unread)
	s.notify(Change{Kind: ChangeRead})
}

// ReconcileUnread fetches the server's unread count and triggers a
// refresh when it diverges from the local filtered counter. Cheap
// drift check between full refreshes.
func (s *Synchronizer) ReconcileUnread(ctx context.Context) (int, error) {
	var count int
	err := s.api.Execute(ctx, transport.Request{
		Method: "GET",
		Path:   "/api/notifications/unread-count",
	}, &count)
	if err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}

	s.mu.Lock()
	local := s.unread
	s.mu.Unlock()

	if count != local {
		if err := s.Refresh(ctx); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Records returns a snapshot of the visible cache, newest first.
func (s *Synchronizer) Records() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Record returns the cached record with the given id.
func (s *Synchronizer) Record(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// UnreadCount returns the unread counter over the filtered view.
func (s *Synchronizer) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Subscribe registers a change listener. The returned cancel func
// removes it and is safe to call more than once. Slow subscribers
// lose changes rather than block the cache.
func (s *Synchronizer) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 16)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// notify delivers the change to every subscriber. Sends stay under
// subMu so a concurrent cancel cannot close a channel mid-dispatch.
func (s *Synchronizer) notify(change Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// activeRole reads the cached profile's role. Without a profile the
// role is empty, which leaves only broadcast records visible.
func (s *Synchronizer) activeRole(ctx context.Context) (credential.Role, error) {
	profile, err := s.creds.Profile(ctx)
	if err != nil {
		return "", fmt.Errorf("reading profile: %w", err)
	}
	if profile == nil {
		return "", nil
	}
	return profile.Role, nil
}

func (s *Synchronizer) countRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.RefreshesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Synchronizer) countPush(disposition string) {
	if s.metrics != nil {
		s.metrics.PushEventsTotal.WithLabelValues(disposition).Inc()
	}
}

func (s *Synchronizer) setUnreadGauge(unread int) {
	if s.metrics != nil {
		s.metrics.UnreadCount.Set(float64(unread))
	}
}
