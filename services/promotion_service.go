package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"train-booking/events"
	"train-booking/internal/status"
	"train-booking/models"
	"train-booking/monitoring"
)

// PromotionService moves the head of the waiting list into a freed seat.
// Every promotion runs under the same per (train, date) lock as admission
// and cancellation, so one freed seat promotes exactly one booking.
type PromotionService struct {
	bookings  BookingStore
	inventory inventoryLedger
	waitlist  waitlistLedger
	locks     Locker
	publisher events.Publisher
}

func NewPromotionService(
	bookings BookingStore,
	inventory *InventoryService,
	waitlist *WaitlistService,
	locks Locker,
	publisher events.Publisher,
) *PromotionService {
	return &PromotionService{
		bookings:  bookings,
		inventory: inventory,
		waitlist:  waitlist,
		locks:     locks,
		publisher: publisher,
	}
}

// PromoteNext promotes the lowest-position Waiting booking to Confirmed.
// Returns (nil, nil) when the waiting list is empty or no seat is free.
func (s *PromotionService) PromoteNext(ctx context.Context, trainID, journeyDate string) (*models.Booking, error) {
	lockKey := bookingLockKey(trainID, journeyDate)
	token, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(ctx, lockKey, token)

	return s.promoteLocked(ctx, trainID, journeyDate)
}

func (s *PromotionService) promoteLocked(ctx context.Context, trainID, journeyDate string) (*models.Booking, error) {
	bookingID, err := s.waitlist.PopLowest(ctx, trainID, journeyDate)
	if errors.Is(err, status.ErrWaitlistEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	remaining, err := s.inventory.Reserve(ctx, trainID, journeyDate)
	if err != nil {
		if pushErr := s.waitlist.PushFront(ctx, trainID, journeyDate, bookingID); pushErr != nil {
			slog.Error("could not restore waitlist head",
				"train", trainID, "date", journeyDate, "booking", bookingID, "error", pushErr)
		}
		if errors.Is(err, status.ErrExhausted) {
			// Another path consumed the seat between release and here.
			return nil, nil
		}
		return nil, err
	}

	booking, err := s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		s.undoPromotion(ctx, trainID, journeyDate, bookingID, errors.Is(err, status.ErrBookingNotFound))
		if errors.Is(err, status.ErrBookingNotFound) {
			// Stale list entry; the freed seat stays free for the next pass.
			slog.Error("waitlist entry without booking record",
				"train", trainID, "date", journeyDate, "booking", bookingID)
			return nil, status.ErrPromotionConflict
		}
		return nil, err
	}
	if booking.Status != models.StatusWaiting {
		s.undoPromotion(ctx, trainID, journeyDate, bookingID, true)
		return nil, status.ErrPromotionConflict
	}

	now := time.Now()
	booking.Status = models.StatusConfirmed
	booking.WaitingPosition = 0
	booking.ConfirmedAt = &now
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		s.undoPromotion(ctx, trainID, journeyDate, bookingID, false)
		return nil, err
	}

	positionMoves, err := renumberWaiting(ctx, s.bookings, s.waitlist, trainID, journeyDate)
	if err != nil {
		slog.Error("waitlist renumber failed",
			"train", trainID, "date", journeyDate, "error", err)
	}

	monitoring.TrackPromotion()
	monitoring.SetAvailableSeats(trainID, journeyDate, remaining)

	s.publisher.Publish(ctx, models.BookingPromoted{
		BookingID:   booking.ID,
		PNR:         booking.PNR,
		UserID:      booking.UserID,
		TrainID:     trainID,
		JourneyDate: journeyDate,
	})
	s.publisher.Publish(ctx, models.BookingStatusUpdate{
		BookingID: booking.ID,
		PNR:       booking.PNR,
		UserID:    booking.UserID,
		Status:    booking.Status,
		Message:   "Your booking has been confirmed",
	})
	for _, move := range positionMoves {
		s.publisher.Publish(ctx, move)
	}
	s.publisher.Publish(ctx, models.SeatAvailabilityChanged{
		TrainID:     trainID,
		JourneyDate: journeyDate,
		Available:   remaining,
	})

	return booking, nil
}

// undoPromotion returns the reserved seat and, unless the list entry was
// stale, puts the popped booking back at the head.
func (s *PromotionService) undoPromotion(ctx context.Context, trainID, journeyDate, bookingID string, dropEntry bool) {
	if _, err := s.inventory.Release(ctx, trainID, journeyDate); err != nil {
		slog.Error("could not undo promotion reservation",
			"train", trainID, "date", journeyDate, "error", err)
	}
	if dropEntry {
		return
	}
	if err := s.waitlist.PushFront(ctx, trainID, journeyDate, bookingID); err != nil {
		slog.Error("could not restore waitlist head",
			"train", trainID, "date", journeyDate, "booking", bookingID, "error", err)
	}
}

// renumberWaiting rewrites every Waiting booking's stored position to match
// its current list index (head = 1) and returns the position change events
// for the bookings that moved. Caller must hold the (train, date) lock.
func renumberWaiting(ctx context.Context, bookings BookingStore, waitlist waitlistLedger, trainID, journeyDate string) ([]models.WaitingPositionChanged, error) {
	ids, err := waitlist.Entries(ctx, trainID, journeyDate)
	if err != nil {
		return nil, err
	}

	var moves []models.WaitingPositionChanged
	for i, id := range ids {
		position := i + 1
		booking, err := bookings.BookingByID(ctx, id)
		if err != nil {
			slog.Error("waitlist entry without booking record",
				"train", trainID, "date", journeyDate, "booking", id, "error", err)
			continue
		}
		if booking.WaitingPosition == position {
			continue
		}
		booking.WaitingPosition = position
		if err := bookings.UpdateBooking(ctx, booking); err != nil {
			return moves, err
		}
		moves = append(moves, models.WaitingPositionChanged{
			BookingID:   booking.ID,
			PNR:         booking.PNR,
			UserID:      booking.UserID,
			NewPosition: position,
		})
	}

	monitoring.SetWaitlistLength(trainID, journeyDate, len(ids))
	return moves, nil
}
