// Package booking wraps the booking endpoints of the remote service.
package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zonebook/zonebook-go/internal/transport"
)

// Status is the server-side booking status
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Booking is a venue booking as returned by the server
type Booking struct {
	ID       string  `json:"id"`
	ZoneID   string  `json:"zoneId"`
	Date     string  `json:"date"`
	TimeSlot string  `json:"timeSlot"`
	Duration int     `json:"duration"`
	Status   Status  `json:"status"`
	Notes    string  `json:"notes,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
}

// CreateParams are the fields for a new booking request
type CreateParams struct {
	ZoneID   string `json:"zoneId"`
	Date     string `json:"date"`
	TimeSlot string `json:"timeSlot"`
	Duration int    `json:"duration"`
	Notes    string `json:"notes,omitempty"`
}

// Service executes booking operations
type Service struct {
	api *transport.Executor
}

// NewService creates a booking service over the executor.
func NewService(api *transport.Executor) *Service {
	return &Service{api: api}
}

// List fetches the current user's bookings.
func (s *Service) List(ctx context.Context) ([]Booking, error) {
	var resp struct {
		Bookings []Booking `json:"bookings"`
	}
	err := s.api.Execute(ctx, transport.Request{
		Method: "GET",
		Path:   "/api/bookings",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	return resp.Bookings, nil
}

// Create submits a new booking request. The call carries an
// idempotency key and is never retried automatically: a transient
// failure after the server persisted the booking must not create a
// duplicate. A slot collision surfaces as a Conflict error with the
// server's message intact.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Booking, error) {
	if params.ZoneID == "" {
		return nil, transport.NewError(transport.KindValidation, "zone is required")
	}
	if params.Date == "" || params.TimeSlot == "" {
		return nil, transport.NewError(transport.KindValidation, "date and time slot are required")
	}
	if params.Duration <= 0 {
		return nil, transport.NewError(transport.KindValidation, "duration must be positive")
	}

	var created Booking
	err := s.api.Execute(ctx, transport.Request{
		Method:         "POST",
		Path:           "/api/bookings",
		Body:           params,
		NoRetry:        true,
		IdempotencyKey: uuid.NewString(),
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}
	return &created, nil
}

// Cancel cancels a booking.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return transport.NewError(transport.KindValidation, "booking id is required")
	}
	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/bookings/" + id + "/cancel",
	}, nil)
	if err != nil {
		return fmt.Errorf("cancelling booking: %w", err)
	}
	return nil
}

// Confirm accepts a booking request as the vendor. The message is
// optional.
func (s *Service) Confirm(ctx context.Context, id, message string) error {
	if id == "" {
		return transport.NewError(transport.KindValidation, "booking id is required")
	}

	body := map[string]string{}
	if message != "" {
		body["message"] = message
	}
	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/vendor/bookings/" + id + "/confirm",
		Body:   body,
	}, nil)
	if err != nil {
		return fmt.Errorf("confirming booking: %w", err)
	}
	return nil
}

// Decline rejects a booking request as the vendor. The reason is
// required and validated before any network call.
func (s *Service) Decline(ctx context.Context, id, reason string) error {
	if id == "" {
		return transport.NewError(transport.KindValidation, "booking id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return transport.NewError(transport.KindValidation, "a decline reason is required")
	}

	err := s.api.Execute(ctx, transport.Request{
		Method: "PUT",
		Path:   "/api/vendor/bookings/" + id + "/decline",
		Body:   map[string]string{"reason": reason},
	}, nil)
	if err != nil {
		return fmt.Errorf("declining booking: %w", err)
	}
	return nil
}
