package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zonebook/zonebook-go/internal/booking"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/platform/metrics"
	"github.com/zonebook/zonebook-go/internal/transport"
)

// Actions turns a user-chosen notification action into a targeted
// remote call. A pending-operation guard rejects overlapping actions
// on the same notification id.
type Actions struct {
	sync     *Synchronizer
	bookings *booking.Service
	api      *transport.Executor
	log      logger.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	pending  map[string]bool
	opened   map[string]bool
	resolved map[string]bool
}

// NewActions creates the action executor.
func NewActions(s *Synchronizer, bookings *booking.Service, api *transport.Executor, log logger.Logger, m *metrics.Metrics) *Actions {
	return &Actions{
		sync:     s,
		bookings: bookings,
		api:      api,
		log:      log,
		metrics:  m,
		pending:  make(map[string]bool),
		opened:   make(map[string]bool),
		resolved: make(map[string]bool),
	}
}

// Open records that the user opened a notification, moving a
// review-required record from received to reviewing.
func (a *Actions) Open(id string) {
	a.mu.Lock()
	a.opened[id] = true
	a.mu.Unlock()
}

// Act executes the given action kind on a notification. Validation
// failures are raised before any network call; success marks the
// record read and triggers a refresh so derived state recomputes;
// failure leaves the record unresolved so the user may retry.
func (a *Actions) Act(ctx context.Context, id string, kind ActionKind, payload map[string]string) error {
	rec, ok := a.sync.Record(id)
	if !ok {
		return transport.NewError(transport.KindValidation, "unknown notification")
	}

	if err := a.acquire(id); err != nil {
		return err
	}
	defer a.release(id)

	err := a.dispatch(ctx, rec, kind, payload)
	if err != nil {
		a.countAction(kind, "failure")
		a.log.Warn("notification action failed",
			"notification", id, "kind", kind, "error", err)
		return err
	}

	a.countAction(kind, "success")

	if kind == ActionConfirm || kind == ActionDecline {
		a.mu.Lock()
		a.resolved[rec.ID] = true
		a.mu.Unlock()
	}

	a.sync.markReadLocal(rec.ID)
	if refreshErr := a.sync.Refresh(ctx); refreshErr != nil {
		// The action itself landed; a failed follow-up refresh only
		// delays suppression until the next one.
		a.log.Warn("refresh after action failed", "notification", id, "error", refreshErr)
	}
	return nil
}

// ReviewState derives the vendor-side lifecycle state of a
// review-required booking notification. Resolved is only reported for
// records this executor actually resolved; an id that was never cached
// here reports ReviewUnknown.
func (a *Actions) ReviewState(id string) ReviewState {
	a.mu.Lock()
	pending := a.pending[id]
	opened := a.opened[id]
	resolved := a.resolved[id]
	a.mu.Unlock()

	rec, cached := a.sync.Record(id)
	switch {
	case resolved:
		return ReviewResolved
	case !cached:
		return ReviewUnknown
	case pending:
		return ReviewResolving
	case opened || rec.IsRead:
		return ReviewReviewing
	default:
		return ReviewReceived
	}
}

func (a *Actions) dispatch(ctx context.Context, rec *Record, kind ActionKind, payload map[string]string) error {
	switch kind {
	case ActionConfirm:
		bookingID, ok := rec.BookingID()
		if !ok {
			return transport.NewError(transport.KindValidation, "notification has no booking reference")
		}
		return a.bookings.Confirm(ctx, bookingID, payload["message"])

	case ActionDecline:
		bookingID, ok := rec.BookingID()
		if !ok {
			return transport.NewError(transport.KindValidation, "notification has no booking reference")
		}
		if strings.TrimSpace(payload["reason"]) == "" {
			return transport.NewError(transport.KindValidation, "a decline reason is required")
		}
		return a.bookings.Decline(ctx, bookingID, payload["reason"])

	default:
		action, ok := rec.Action(kind)
		if !ok || action.Endpoint == "" {
			return transport.NewError(transport.KindValidation,
				fmt.Sprintf("notification carries no %s action", kind))
		}
		method := action.Method
		if method == "" {
			method = "POST"
		}
		var body interface{}
		if len(payload) > 0 {
			body = payload
		}
		return a.api.Execute(ctx, transport.Request{
			Method: method,
			Path:   action.Endpoint,
			Body:   body,
		}, nil)
	}
}

// acquire registers the pending operation for a notification id,
// rejecting a second concurrent action on the same record.
func (a *Actions) acquire(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending[id] {
		return transport.NewError(transport.KindOperationInProgress, "an action is already in progress for this notification")
	}
	a.pending[id] = true
	return nil
}

func (a *Actions) release(id string) {
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
}

func (a *Actions) countAction(kind ActionKind, outcome string) {
	if a.metrics != nil {
		a.metrics.ActionsTotal.WithLabelValues(string(kind), outcome).Inc()
	}
}
