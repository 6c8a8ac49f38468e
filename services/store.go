package services

import (
	"context"
	"time"

	"train-booking/models"
)

// The services are parameterized by the storage backend: every entry point
// shares one admission/promotion implementation and only the stores differ
// between production (PocketBase) and tests (in-memory fakes).

type TrainStore interface {
	TrainByID(ctx context.Context, id string) (*models.Train, error)
	Trains(ctx context.Context) ([]*models.Train, error)
}

type BookingStore interface {
	BookingByID(ctx context.Context, id string) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id string) error

	// SeatTaken reports whether a Confirmed or RAC booking already holds
	// the seat/coach pair for the train and date.
	SeatTaken(ctx context.Context, trainID, journeyDate, seatNumber, coachNumber string) (bool, error)

	// UserHasBooking reports whether the user already holds any
	// non-cancelled booking for the train and date.
	UserHasBooking(ctx context.Context, userID, trainID, journeyDate string) (bool, error)

	CountByStatus(ctx context.Context, trainID, journeyDate, bookingStatus string) (int, error)
	WaitingBookings(ctx context.Context, trainID, journeyDate string) ([]*models.Booking, error)
	BookingsForUser(ctx context.Context, userID string) ([]*models.Booking, error)

	// ActiveJourneys lists the distinct (train, date) pairs that still have
	// non-cancelled bookings. Used to rebuild the Redis ledgers on boot.
	ActiveJourneys(ctx context.Context) ([]Journey, error)
}

type Journey struct {
	TrainID     string
	JourneyDate string
}

type TransitionStore interface {
	CreateTransition(ctx context.Context, transition *models.Transition) error

	// DueTransitions lists pending rows whose fire_at has passed, plus
	// claimed rows whose claim predates staleBefore (their worker died
	// mid-flight).
	DueTransitions(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.Transition, error)

	// ClaimTransition flips a pending or stale-claimed row to claimed at
	// now and reports whether this caller won the claim. The status guard
	// makes the claim race-free against concurrent workers and against
	// cancellation.
	ClaimTransition(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	CompleteTransition(ctx context.Context, id string) error
	CancelTransition(ctx context.Context, id string) error
	CancelPendingForBooking(ctx context.Context, bookingID string) (int, error)
}

// Locker is the per (train, date) mutex every admission, cancellation and
// promotion serializes on. Different keys never contend.
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, err error)
	Release(ctx context.Context, key, token string) error
}
