package notify

import (
	"github.com/zonebook/zonebook-go/internal/credential"
)

// FilterForRole returns the records visible to the given role. It is a
// pure function over one source set so it applies identically to a
// fetched page and to a single push event.
//
// Two rules compose:
//   - audience: broadcast records are visible to everyone; vendor and
//     customer records only to the matching role.
//   - processed suppression: for vendors, a review-required
//     booking_created record is dropped when the same source set
//     contains a vendor-audience resolution (confirmed or cancelled)
//     for the same booking.
//
// Suppression is computed against the unfiltered input, so a
// resolution record hidden from the current role still suppresses.
func FilterForRole(records []*Record, role credential.Role) []*Record {
	resolved := resolvedBookings(records)

	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if !audienceVisible(r.Audience, role) {
			continue
		}
		if role == credential.RoleVendor && suppressed(r, resolved) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Visible reports whether a single record passes the role filter.
// Suppression needs the surrounding source set and is not applied here.
func Visible(r *Record, role credential.Role) bool {
	return audienceVisible(r.Audience, role)
}

func audienceVisible(audience Audience, role credential.Role) bool {
	switch audience {
	case AudienceVendor:
		return role == credential.RoleVendor
	case AudienceCustomer:
		return role == credential.RoleCustomer
	default:
		return true
	}
}

// resolvedBookings collects booking ids that have a vendor-audience
// confirmed or cancelled record in the set.
func resolvedBookings(records []*Record) map[string]bool {
	resolved := make(map[string]bool)
	for _, r := range records {
		if r.Audience != AudienceVendor {
			continue
		}
		if r.Type != TypeBookingConfirmed && r.Type != TypeBookingCancelled {
			continue
		}
		if id, ok := r.BookingID(); ok {
			resolved[id] = true
		}
	}
	return resolved
}

func suppressed(r *Record, resolved map[string]bool) bool {
	if !r.ReviewRequired() {
		return false
	}
	id, ok := r.BookingID()
	return ok && resolved[id]
}
