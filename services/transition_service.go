package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"train-booking/events"
	"train-booking/internal/status"
	"train-booking/models"
	"train-booking/monitoring"
)

const (
	transitionBatchSize = 50

	// A claimed row whose worker died is reclaimable after this long.
	claimLease = time.Minute
)

// TransitionService drives the staged confirmation flow: a Waiting booking
// is moved to RAC after the confirmation delay, then to Confirmed after the
// RAC hold. Schedules are durable rows, not in-process timers, so they
// survive restarts, and the pending-status claim makes each row fire at
// most once even with several workers polling. A claim orphaned by a dead
// worker goes stale after the lease and is picked up again.
type TransitionService struct {
	trains      TrainStore
	bookings    BookingStore
	transitions TransitionStore
	inventory   inventoryLedger
	waitlist    waitlistLedger
	locks       Locker
	publisher   events.Publisher

	confirmationDelay time.Duration
	racHold           time.Duration
	pollRate          time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewTransitionService(
	trains TrainStore,
	bookings BookingStore,
	transitions TransitionStore,
	inventory *InventoryService,
	waitlist *WaitlistService,
	locks Locker,
	publisher events.Publisher,
	confirmationDelay, racHold, pollRate time.Duration,
) *TransitionService {
	return &TransitionService{
		trains:            trains,
		bookings:          bookings,
		transitions:       transitions,
		inventory:         inventory,
		waitlist:          waitlist,
		locks:             locks,
		publisher:         publisher,
		confirmationDelay: confirmationDelay,
		racHold:           racHold,
		pollRate:          pollRate,
		stopChan:          make(chan struct{}),
	}
}

// ScheduleConfirmation starts the staged confirmation for a Waiting booking.
func (s *TransitionService) ScheduleConfirmation(ctx context.Context, bookingID string) (*models.Transition, error) {
	booking, err := s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusWaiting {
		return nil, status.ErrNotWaiting
	}

	transition := &models.Transition{
		BookingID: booking.ID,
		Stage:     models.StageRAC,
		Status:    models.TransitionPending,
		FireAt:    time.Now().Add(s.confirmationDelay),
	}
	if err := s.transitions.CreateTransition(ctx, transition); err != nil {
		return nil, err
	}
	return transition, nil
}

// CancelScheduled cancels every pending transition for a booking. Safe to
// call for bookings with nothing scheduled.
func (s *TransitionService) CancelScheduled(ctx context.Context, bookingID string) (int, error) {
	return s.transitions.CancelPendingForBooking(ctx, bookingID)
}

// Start launches the polling worker.
func (s *TransitionService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop signals the worker to exit and waits for the in-flight tick.
func (s *TransitionService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *TransitionService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

func (s *TransitionService) tick(ctx context.Context) {
	now := time.Now()
	staleBefore := now.Add(-claimLease)
	due, err := s.transitions.DueTransitions(ctx, now, staleBefore, transitionBatchSize)
	if err != nil {
		slog.Error("could not load due transitions", "error", err)
		return
	}

	for _, transition := range due {
		won, err := s.transitions.ClaimTransition(ctx, transition.ID, now, staleBefore)
		if err != nil {
			slog.Error("could not claim transition", "transition", transition.ID, "error", err)
			continue
		}
		if !won {
			continue
		}
		s.fire(ctx, transition)
	}
}

func (s *TransitionService) fire(ctx context.Context, transition *models.Transition) {
	result, err := s.apply(ctx, transition)
	if err != nil {
		slog.Error("transition failed",
			"transition", transition.ID, "stage", transition.Stage,
			"booking", transition.BookingID, "error", err)
		monitoring.TrackTransition(transition.Stage, "error")
		return
	}
	monitoring.TrackTransition(transition.Stage, result)
}

func (s *TransitionService) apply(ctx context.Context, transition *models.Transition) (string, error) {
	booking, err := s.bookings.BookingByID(ctx, transition.BookingID)
	if errors.Is(err, status.ErrBookingNotFound) {
		return s.skip(ctx, transition)
	}
	if err != nil {
		return "", err
	}

	lockKey := bookingLockKey(booking.TrainID, booking.JourneyDate)
	token, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return "", err
	}
	defer s.locks.Release(ctx, lockKey, token)

	// Re-read under the lock; the booking may have been cancelled or
	// promoted since the claim.
	booking, err = s.bookings.BookingByID(ctx, transition.BookingID)
	if errors.Is(err, status.ErrBookingNotFound) {
		return s.skip(ctx, transition)
	}
	if err != nil {
		return "", err
	}

	switch transition.Stage {
	case models.StageRAC:
		return s.applyRAC(ctx, transition, booking)
	case models.StageConfirm:
		return s.applyConfirm(ctx, transition, booking)
	default:
		slog.Error("unknown transition stage", "transition", transition.ID, "stage", transition.Stage)
		return s.skip(ctx, transition)
	}
}

func (s *TransitionService) skip(ctx context.Context, transition *models.Transition) (string, error) {
	if err := s.transitions.CancelTransition(ctx, transition.ID); err != nil {
		return "", err
	}
	return "skipped", nil
}

// applyRAC moves a Waiting booking off the list into RAC and schedules the
// final confirmation.
func (s *TransitionService) applyRAC(ctx context.Context, transition *models.Transition, booking *models.Booking) (string, error) {
	if booking.Status != models.StatusWaiting {
		return s.skip(ctx, transition)
	}

	if _, err := s.waitlist.Remove(ctx, booking.TrainID, booking.JourneyDate, booking.ID); err != nil {
		return "", err
	}

	booking.Status = models.StatusRAC
	booking.WaitingPosition = 0
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		return "", err
	}

	moves, err := renumberWaiting(ctx, s.bookings, s.waitlist, booking.TrainID, booking.JourneyDate)
	if err != nil {
		slog.Error("waitlist renumber failed",
			"train", booking.TrainID, "date", booking.JourneyDate, "error", err)
	}

	if err := s.transitions.CompleteTransition(ctx, transition.ID); err != nil {
		return "", err
	}

	next := &models.Transition{
		BookingID: booking.ID,
		Stage:     models.StageConfirm,
		Status:    models.TransitionPending,
		FireAt:    time.Now().Add(s.racHold),
	}
	if err := s.transitions.CreateTransition(ctx, next); err != nil {
		return "", err
	}

	s.publisher.Publish(ctx, models.BookingStatusUpdate{
		BookingID: booking.ID,
		PNR:       booking.PNR,
		UserID:    booking.UserID,
		Status:    booking.Status,
		Message:   "Your booking is under reservation against cancellation",
	})
	for _, move := range moves {
		s.publisher.Publish(ctx, move)
	}

	return "completed", nil
}

// applyConfirm moves an RAC booking into a real seat. When the train is
// full the booking simply stays RAC; a later cancellation promotes it.
func (s *TransitionService) applyConfirm(ctx context.Context, transition *models.Transition, booking *models.Booking) (string, error) {
	if booking.Status != models.StatusRAC {
		return s.skip(ctx, transition)
	}

	train, err := s.trains.TrainByID(ctx, booking.TrainID)
	if err != nil {
		return "", err
	}

	remaining, err := s.inventory.Reserve(ctx, train.ID, booking.JourneyDate)
	if errors.Is(err, status.ErrInventoryMissing) {
		if _, rebuildErr := rebuildInventory(ctx, s.bookings, s.inventory, train, booking.JourneyDate); rebuildErr != nil {
			return "", rebuildErr
		}
		remaining, err = s.inventory.Reserve(ctx, train.ID, booking.JourneyDate)
	}
	if errors.Is(err, status.ErrExhausted) {
		slog.Warn("no seat available at confirmation, booking stays RAC",
			"booking", booking.ID, "train", train.ID, "date", booking.JourneyDate)
		if err := s.transitions.CancelTransition(ctx, transition.ID); err != nil {
			return "", err
		}
		return "exhausted", nil
	}
	if err != nil {
		return "", err
	}

	now := time.Now()
	booking.Status = models.StatusConfirmed
	booking.ConfirmedAt = &now
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		if _, relErr := s.inventory.Release(ctx, train.ID, booking.JourneyDate); relErr != nil {
			slog.Error("could not undo confirmation reservation",
				"train", train.ID, "date", booking.JourneyDate, "error", relErr)
		}
		return "", err
	}

	if err := s.transitions.CompleteTransition(ctx, transition.ID); err != nil {
		return "", err
	}

	monitoring.SetAvailableSeats(train.ID, booking.JourneyDate, remaining)
	s.publisher.Publish(ctx, models.BookingStatusUpdate{
		BookingID: booking.ID,
		PNR:       booking.PNR,
		UserID:    booking.UserID,
		Status:    booking.Status,
		Message:   "Your booking has been confirmed",
	})
	s.publisher.Publish(ctx, models.SeatAvailabilityChanged{
		TrainID:     train.ID,
		JourneyDate: booking.JourneyDate,
		Available:   remaining,
	})

	return "completed", nil
}
