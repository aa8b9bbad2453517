// Package notify holds the canonical notification cache and the
// reconciliation logic between server refreshes, push events, and
// user-triggered actions.
package notify

import (
	"time"
)

// Type identifies what a notification is about
type Type string

const (
	TypeBookingCreated     Type = "booking_created"
	TypeBookingConfirmed   Type = "booking_confirmed"
	TypeBookingCancelled   Type = "booking_cancelled"
	TypeBookingUpdated     Type = "booking_updated"
	TypePaymentSuccess     Type = "payment_success"
	TypePaymentFailed      Type = "payment_failed"
	TypeZoneUpdate         Type = "zone_update"
	TypeSystemAnnouncement Type = "system_announcement"
)

// Priority levels
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Category groups notifications for filtering in the UI
type Category string

const (
	CategoryBooking Category = "booking"
	CategoryPayment Category = "payment"
	CategoryZone    Category = "zone"
	CategorySystem  Category = "system"
)

// Audience is the visibility tag assigned once at ingest, collapsing
// the loose role fields the server sends into a single comparison.
type Audience string

const (
	AudienceVendor    Audience = "vendor"
	AudienceCustomer  Audience = "customer"
	AudienceBroadcast Audience = "broadcast"
)

// ActionKind identifies a user-selectable notification action
type ActionKind string

const (
	ActionConfirm ActionKind = "confirm"
	ActionDecline ActionKind = "decline"
	ActionView    ActionKind = "view"
	ActionUpdate  ActionKind = "update"
	ActionGeneric ActionKind = "generic"
)

// Action is an operation the user can take on a notification
type Action struct {
	Kind     ActionKind `json:"type"`
	Label    string     `json:"label"`
	Endpoint string     `json:"endpoint"`
	Method   string     `json:"method"`
}

// Record is a single role-filterable notification
type Record struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	IsRead    bool                   `json:"isRead"`
	Priority  Priority               `json:"priority"`
	Category  Category               `json:"category"`
	Actions   []Action               `json:"actions"`
	CreatedAt time.Time              `json:"createdAt"`

	// Audience is derived from Data by Ingest, never sent on the wire.
	Audience Audience `json:"-"`
}

// Ingest normalizes a record as it enters the cache: the audience tag
// is resolved exactly once, and defaults are filled in.
func (r *Record) Ingest() {
	r.Audience = resolveAudience(r.Data)
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Category == "" {
		r.Category = categoryForType(r.Type)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
}

// resolveAudience collapses the server's loose role fields into one
// tag. Absent any tag the record is a system-wide broadcast.
func resolveAudience(data map[string]interface{}) Audience {
	for _, key := range []string{"audience", "userType", "notificationFor"} {
		switch dataString(data, key) {
		case "vendor":
			return AudienceVendor
		case "customer":
			return AudienceCustomer
		}
	}
	if dataBool(data, "forVendor") || dataBool(data, "vendorOnly") {
		return AudienceVendor
	}
	if dataBool(data, "forCustomer") {
		return AudienceCustomer
	}
	return AudienceBroadcast
}

func categoryForType(t Type) Category {
	switch t {
	case TypeBookingCreated, TypeBookingConfirmed, TypeBookingCancelled, TypeBookingUpdated:
		return CategoryBooking
	case TypePaymentSuccess, TypePaymentFailed:
		return CategoryPayment
	case TypeZoneUpdate:
		return CategoryZone
	default:
		return CategorySystem
	}
}

// BookingID returns the booking referenced by this record, if any.
func (r *Record) BookingID() (string, bool) {
	id := dataString(r.Data, "bookingId")
	return id, id != ""
}

// ReviewRequired reports whether this record awaits a vendor
// confirm/decline decision.
func (r *Record) ReviewRequired() bool {
	return r.Type == TypeBookingCreated &&
		(dataBool(r.Data, "requiresAction") || dataBool(r.Data, "reviewRequired"))
}

// Action returns the embedded action of the given kind.
func (r *Record) Action(kind ActionKind) (Action, bool) {
	for _, a := range r.Actions {
		if a.Kind == kind {
			return a, true
		}
	}
	return Action{}, false
}

func dataString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func dataBool(data map[string]interface{}, key string) bool {
	if data == nil {
		return false
	}
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// ReviewState is the vendor-side lifecycle of a review-required
// booking notification.
type ReviewState string

const (
	ReviewUnknown   ReviewState = ""
	ReviewReceived  ReviewState = "received"
	ReviewReviewing ReviewState = "reviewing"
	ReviewResolving ReviewState = "resolving"
	ReviewResolved  ReviewState = "resolved"
)
