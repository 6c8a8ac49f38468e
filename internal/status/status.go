package status

import "errors"

var (
	// Transient and expected: routes the request to the waiting list.
	ErrExhausted = errors.New("inventory: no seats available")

	// Client input conflicts, surfaced as rejected requests.
	ErrSeatTaken        = errors.New("booking: seat already booked for this train and date")
	ErrDuplicateBooking = errors.New("booking: user already has a booking for this train and date")
	ErrNoCapacity       = errors.New("booking: no seats available and waiting list not allowed")

	ErrTrainNotFound   = errors.New("train: train not found")
	ErrBookingNotFound = errors.New("booking: booking not found")
	ErrForbidden       = errors.New("booking: booking belongs to another user")

	// Invariant violations: logged as fatal-internal, never retried.
	ErrAtCapacity        = errors.New("inventory: release past total capacity")
	ErrInventoryMissing  = errors.New("inventory: ledger not initialized for train and date")
	ErrPromotionConflict = errors.New("promotion: reserve failed for a just-released seat")

	ErrWaitlistEmpty = errors.New("waitlist: no bookings waiting")

	ErrNotWaiting = errors.New("transition: booking is not on the waiting list")

	ErrLockTimeout = errors.New("lock: could not acquire booking lock")
)
