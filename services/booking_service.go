package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"train-booking/events"
	"train-booking/internal/status"
	"train-booking/models"
	"train-booking/monitoring"
	"train-booking/utils"
)

// Internal views of the Redis ledgers, so tests can swap them for
// in-memory fakes the same way the stores are swapped.
type inventoryLedger interface {
	Reserve(ctx context.Context, trainID, journeyDate string) (int, error)
	Release(ctx context.Context, trainID, journeyDate string) (int, error)
	Ensure(ctx context.Context, trainID, journeyDate string, total, available int) (int, error)
	Available(ctx context.Context, trainID, journeyDate string) (int, error)
}

type waitlistLedger interface {
	Append(ctx context.Context, trainID, journeyDate, bookingID string) (int, error)
	PopLowest(ctx context.Context, trainID, journeyDate string) (string, error)
	PushFront(ctx context.Context, trainID, journeyDate, bookingID string) error
	Remove(ctx context.Context, trainID, journeyDate, bookingID string) (int, error)
	Entries(ctx context.Context, trainID, journeyDate string) ([]string, error)
	Length(ctx context.Context, trainID, journeyDate string) (int, error)
	Rebuild(ctx context.Context, trainID, journeyDate string, bookingIDs []string) error
}

var (
	_ inventoryLedger = (*InventoryService)(nil)
	_ waitlistLedger  = (*WaitlistService)(nil)
)

// BookingService is the single admission path: every entry point that
// creates or cancels a booking goes through it.
type BookingService struct {
	trains      TrainStore
	bookings    BookingStore
	transitions TransitionStore
	inventory   inventoryLedger
	waitlist    waitlistLedger
	locks       Locker
	promotions  *PromotionService
	publisher   events.Publisher
}

func NewBookingService(
	trains TrainStore,
	bookings BookingStore,
	transitions TransitionStore,
	inventory *InventoryService,
	waitlist *WaitlistService,
	locks Locker,
	promotions *PromotionService,
	publisher events.Publisher,
) *BookingService {
	return &BookingService{
		trains:      trains,
		bookings:    bookings,
		transitions: transitions,
		inventory:   inventory,
		waitlist:    waitlist,
		locks:       locks,
		promotions:  promotions,
		publisher:   publisher,
	}
}

type CreateBookingInput struct {
	UserID           string
	TrainID          string
	JourneyDate      string // YYYY-MM-DD
	PassengerName    string
	PassengerAge     int
	SeatNumber       string
	CoachNumber      string
	AllowWaitingList bool
}

func bookingLockKey(trainID, journeyDate string) string {
	return fmt.Sprintf("lock:booking:%s:%s", trainID, journeyDate)
}

// CreateBooking admits a reservation request: the seat-taken check, the
// duplicate-user check and the seat reservation (or waiting list append)
// run as one atomic unit under the per (train, date) lock, so two requests
// can never both observe the same seat as free.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	train, err := s.trains.TrainByID(ctx, in.TrainID)
	if err != nil {
		return nil, err
	}

	lockKey := bookingLockKey(train.ID, in.JourneyDate)
	token, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(ctx, lockKey, token)

	taken, err := s.bookings.SeatTaken(ctx, train.ID, in.JourneyDate, in.SeatNumber, in.CoachNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, status.ErrSeatTaken
	}

	duplicate, err := s.bookings.UserHasBooking(ctx, in.UserID, train.ID, in.JourneyDate)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, status.ErrDuplicateBooking
	}

	pnr, err := utils.GeneratePNR()
	if err != nil {
		return nil, fmt.Errorf("generate pnr: %w", err)
	}

	booking := &models.Booking{
		PNR:           pnr,
		UserID:        in.UserID,
		TrainID:       train.ID,
		JourneyDate:   in.JourneyDate,
		PassengerName: in.PassengerName,
		PassengerAge:  in.PassengerAge,
		SeatNumber:    in.SeatNumber,
		CoachNumber:   in.CoachNumber,
		Fare:          train.Fare,
		CreatedAt:     time.Now(),
	}

	remaining, err := s.reserveSeat(ctx, train, in.JourneyDate)
	switch {
	case err == nil:
		if err := s.confirmNewBooking(ctx, train, booking, remaining); err != nil {
			return nil, err
		}
	case errors.Is(err, status.ErrExhausted):
		if !in.AllowWaitingList {
			return nil, status.ErrNoCapacity
		}
		if err := s.waitlistNewBooking(ctx, train, booking); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.publisher.Publish(ctx, models.BookingCreated{
		BookingID:       booking.ID,
		PNR:             booking.PNR,
		UserID:          booking.UserID,
		TrainID:         booking.TrainID,
		JourneyDate:     booking.JourneyDate,
		Status:          booking.Status,
		WaitingPosition: booking.WaitingPosition,
	})

	return booking, nil
}

func (s *BookingService) confirmNewBooking(ctx context.Context, train *models.Train, booking *models.Booking, remaining int) error {
	now := time.Now()
	booking.Status = models.StatusConfirmed
	booking.ConfirmedAt = &now

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		// Undo the reservation so the failed admission has no effect.
		if _, relErr := s.releaseSeat(ctx, train, booking.JourneyDate); relErr != nil {
			slog.Error("could not undo reservation after failed create",
				"train", train.ID, "date", booking.JourneyDate, "error", relErr)
		}
		return err
	}

	monitoring.TrackBookingCreated(models.StatusConfirmed)
	monitoring.SetAvailableSeats(train.ID, booking.JourneyDate, remaining)
	s.publisher.Publish(ctx, models.SeatAvailabilityChanged{
		TrainID:     train.ID,
		JourneyDate: booking.JourneyDate,
		Available:   remaining,
	})
	return nil
}

func (s *BookingService) waitlistNewBooking(ctx context.Context, train *models.Train, booking *models.Booking) error {
	booking.Status = models.StatusWaiting

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return err
	}

	position, err := s.waitlist.Append(ctx, train.ID, booking.JourneyDate, booking.ID)
	if err != nil {
		if delErr := s.bookings.DeleteBooking(ctx, booking.ID); delErr != nil {
			slog.Error("could not undo booking after failed waitlist append",
				"booking", booking.ID, "error", delErr)
		}
		return err
	}

	booking.WaitingPosition = position
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		if _, remErr := s.waitlist.Remove(ctx, train.ID, booking.JourneyDate, booking.ID); remErr != nil {
			slog.Error("could not undo waitlist append after failed update",
				"booking", booking.ID, "error", remErr)
		}
		if delErr := s.bookings.DeleteBooking(ctx, booking.ID); delErr != nil {
			slog.Error("could not undo booking after failed update",
				"booking", booking.ID, "error", delErr)
		}
		return err
	}

	monitoring.TrackBookingCreated(models.StatusWaiting)
	monitoring.SetWaitlistLength(train.ID, booking.JourneyDate, position)
	return nil
}

// CancelBooking cancels a booking on behalf of its owner. The returned
// flag reports whether the cancellation frees a seat and therefore
// triggers a waiting list promotion.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requestingUserID string) (bool, error) {
	booking, err := s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if booking.UserID != requestingUserID {
		return false, status.ErrForbidden
	}
	if booking.Status == models.StatusCancelled {
		return false, nil
	}

	train, err := s.trains.TrainByID(ctx, booking.TrainID)
	if err != nil {
		return false, err
	}

	lockKey := bookingLockKey(booking.TrainID, booking.JourneyDate)
	token, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return false, err
	}

	var wasSeatHolder bool

	err = func() error {
		defer s.locks.Release(ctx, lockKey, token)

		// Re-read under the lock: the booking may have been promoted or
		// transitioned since the ownership check.
		booking, err = s.bookings.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status == models.StatusCancelled {
			return nil
		}

		if _, err := s.transitions.CancelPendingForBooking(ctx, booking.ID); err != nil {
			slog.Error("could not cancel pending transitions",
				"booking", booking.ID, "error", err)
		}

		wasSeatHolder = booking.HoldsSeat()

		if booking.Status == models.StatusWaiting {
			if _, err := s.waitlist.Remove(ctx, booking.TrainID, booking.JourneyDate, booking.ID); err != nil {
				return err
			}
		}

		booking.Status = models.StatusCancelled
		booking.WaitingPosition = 0
		if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
			return err
		}

		released := false
		if wasSeatHolder {
			remaining, err := s.releaseSeat(ctx, train, booking.JourneyDate)
			switch {
			case errors.Is(err, status.ErrAtCapacity):
				// Either the counters are corrupt or the booking never held
				// a seat (RAC). Logged, not retried, no promotion.
				slog.Error("seat release past capacity",
					"train", booking.TrainID, "date", booking.JourneyDate, "booking", booking.ID)
			case err != nil:
				return err
			default:
				released = true
				monitoring.SetAvailableSeats(booking.TrainID, booking.JourneyDate, remaining)
				s.publisher.Publish(ctx, models.SeatAvailabilityChanged{
					TrainID:     booking.TrainID,
					JourneyDate: booking.JourneyDate,
					Available:   remaining,
				})
			}
		}

		// Positions must stay dense after removing a Waiting entry.
		positionMoves, err := renumberWaiting(ctx, s.bookings, s.waitlist, booking.TrainID, booking.JourneyDate)
		if err != nil {
			slog.Error("waitlist renumber failed",
				"train", booking.TrainID, "date", booking.JourneyDate, "error", err)
		}

		monitoring.TrackBookingCancelled()
		s.publisher.Publish(ctx, models.BookingCancelled{
			BookingID:   booking.ID,
			PNR:         booking.PNR,
			UserID:      booking.UserID,
			TrainID:     booking.TrainID,
			JourneyDate: booking.JourneyDate,
			WillPromote: wasSeatHolder,
		})
		for _, move := range positionMoves {
			s.publisher.Publish(ctx, move)
		}

		// The freed seat goes to the waiting list head before the lock is
		// given up, so a concurrent admission cannot take it first.
		if released {
			if _, err := s.promotions.promoteLocked(ctx, booking.TrainID, booking.JourneyDate); err != nil {
				// The cancellation itself is committed; the promotion failure
				// stands on its own.
				slog.Error("promotion after cancellation failed",
					"train", booking.TrainID, "date", booking.JourneyDate, "error", err)
			}
		}
		return nil
	}()
	if err != nil {
		return false, err
	}

	return wasSeatHolder, nil
}

// BookingsForUser lists the user's bookings, newest first.
func (s *BookingService) BookingsForUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	return s.bookings.BookingsForUser(ctx, userID)
}

// BookingForUser fetches one booking and enforces ownership.
func (s *BookingService) BookingForUser(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	booking, err := s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, status.ErrForbidden
	}
	return booking, nil
}

// AvailableSeats reports the remaining seats for a train and date,
// initializing the ledger from the persisted bookings when Redis has no
// counters yet.
func (s *BookingService) AvailableSeats(ctx context.Context, trainID, journeyDate string) (int, error) {
	train, err := s.trains.TrainByID(ctx, trainID)
	if err != nil {
		return 0, err
	}

	available, err := s.inventory.Available(ctx, train.ID, journeyDate)
	if !errors.Is(err, status.ErrInventoryMissing) {
		return available, err
	}
	return s.ensureInventory(ctx, train, journeyDate)
}

// RemoveFromWaitlist cancels a Waiting booking on behalf of an operator,
// bypassing the ownership check. Non-Waiting bookings are rejected.
func (s *BookingService) RemoveFromWaitlist(ctx context.Context, bookingID string) error {
	booking, err := s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.StatusWaiting {
		return status.ErrNotWaiting
	}

	lockKey := bookingLockKey(booking.TrainID, booking.JourneyDate)
	token, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return err
	}
	defer s.locks.Release(ctx, lockKey, token)

	booking, err = s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.StatusWaiting {
		return status.ErrNotWaiting
	}

	if _, err := s.transitions.CancelPendingForBooking(ctx, booking.ID); err != nil {
		slog.Error("could not cancel pending transitions",
			"booking", booking.ID, "error", err)
	}
	if _, err := s.waitlist.Remove(ctx, booking.TrainID, booking.JourneyDate, booking.ID); err != nil {
		return err
	}

	booking.Status = models.StatusCancelled
	booking.WaitingPosition = 0
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		return err
	}

	positionMoves, err := renumberWaiting(ctx, s.bookings, s.waitlist, booking.TrainID, booking.JourneyDate)
	if err != nil {
		slog.Error("waitlist renumber failed",
			"train", booking.TrainID, "date", booking.JourneyDate, "error", err)
	}

	monitoring.TrackBookingCancelled()
	s.publisher.Publish(ctx, models.BookingCancelled{
		BookingID:   booking.ID,
		PNR:         booking.PNR,
		UserID:      booking.UserID,
		TrainID:     booking.TrainID,
		JourneyDate: booking.JourneyDate,
	})
	for _, move := range positionMoves {
		s.publisher.Publish(ctx, move)
	}
	return nil
}

// WaitlistSnapshot returns the Waiting bookings in promotion order together
// with the current available-seat count.
func (s *BookingService) WaitlistSnapshot(ctx context.Context, trainID, journeyDate string) ([]*models.Booking, int, error) {
	available, err := s.AvailableSeats(ctx, trainID, journeyDate)
	if err != nil {
		return nil, 0, err
	}

	ids, err := s.waitlist.Entries(ctx, trainID, journeyDate)
	if err != nil {
		return nil, 0, err
	}

	waiting := make([]*models.Booking, 0, len(ids))
	for _, id := range ids {
		booking, err := s.bookings.BookingByID(ctx, id)
		if err != nil {
			slog.Error("waitlist entry without booking record",
				"train", trainID, "date", journeyDate, "booking", id, "error", err)
			continue
		}
		waiting = append(waiting, booking)
	}
	return waiting, available, nil
}

// WaitingCount reports the current waiting list length.
func (s *BookingService) WaitingCount(ctx context.Context, trainID, journeyDate string) (int, error) {
	return s.waitlist.Length(ctx, trainID, journeyDate)
}

// RestoreLedgers rebuilds the Redis counters and waiting lists from the
// persisted bookings for every journey that still has active bookings.
// Runs on boot and on demand; existing ledgers are left untouched.
func (s *BookingService) RestoreLedgers(ctx context.Context) (int, error) {
	journeys, err := s.bookings.ActiveJourneys(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, journey := range journeys {
		if err := s.restoreJourney(ctx, journey); err != nil {
			slog.Error("ledger restore failed",
				"train", journey.TrainID, "date", journey.JourneyDate, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

func (s *BookingService) restoreJourney(ctx context.Context, journey Journey) error {
	train, err := s.trains.TrainByID(ctx, journey.TrainID)
	if err != nil {
		return err
	}

	lockKey := bookingLockKey(train.ID, journey.JourneyDate)
	token, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return err
	}
	defer s.locks.Release(ctx, lockKey, token)

	if _, err := s.ensureInventory(ctx, train, journey.JourneyDate); err != nil {
		return err
	}

	waiting, err := s.bookings.WaitingBookings(ctx, train.ID, journey.JourneyDate)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(waiting))
	for _, booking := range waiting {
		ids = append(ids, booking.ID)
	}
	return s.waitlist.Rebuild(ctx, train.ID, journey.JourneyDate, ids)
}

// reserveSeat reserves one seat, rebuilding the ledger from the persisted
// bookings when Redis lost it.
func (s *BookingService) reserveSeat(ctx context.Context, train *models.Train, journeyDate string) (int, error) {
	remaining, err := s.inventory.Reserve(ctx, train.ID, journeyDate)
	if !errors.Is(err, status.ErrInventoryMissing) {
		return remaining, err
	}
	if _, err := s.ensureInventory(ctx, train, journeyDate); err != nil {
		return 0, err
	}
	return s.inventory.Reserve(ctx, train.ID, journeyDate)
}

func (s *BookingService) releaseSeat(ctx context.Context, train *models.Train, journeyDate string) (int, error) {
	remaining, err := s.inventory.Release(ctx, train.ID, journeyDate)
	if !errors.Is(err, status.ErrInventoryMissing) {
		return remaining, err
	}
	if _, err := s.ensureInventory(ctx, train, journeyDate); err != nil {
		return 0, err
	}
	return s.inventory.Release(ctx, train.ID, journeyDate)
}

func (s *BookingService) ensureInventory(ctx context.Context, train *models.Train, journeyDate string) (int, error) {
	return rebuildInventory(ctx, s.bookings, s.inventory, train, journeyDate)
}

// rebuildInventory recomputes a missing Redis counter pair from the
// persisted Confirmed bookings. Caller must hold the (train, date) lock.
func rebuildInventory(ctx context.Context, bookings BookingStore, inventory inventoryLedger, train *models.Train, journeyDate string) (int, error) {
	confirmed, err := bookings.CountByStatus(ctx, train.ID, journeyDate, models.StatusConfirmed)
	if err != nil {
		return 0, err
	}
	available := train.TotalSeats - confirmed
	if available < 0 {
		slog.Error("more confirmed bookings than seats",
			"train", train.ID, "date", journeyDate, "confirmed", confirmed, "total", train.TotalSeats)
		available = 0
	}
	return inventory.Ensure(ctx, train.ID, journeyDate, train.TotalSeats, available)
}
