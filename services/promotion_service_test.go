package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-booking/internal/status"
	"train-booking/models"
)

func TestPromotionService_PromoteNext_EmptyList(t *testing.T) {
	f := setupBookingFixture(1, 1)

	booking, err := f.promotions.PromoteNext(context.Background(), f.train.ID, testDate)

	require.NoError(t, err)
	assert.Nil(t, booking)
}

func TestPromotionService_PromoteNext_NoSeatFree(t *testing.T) {
	f := setupBookingFixture(1, 0)
	waiting := f.seedBooking("user-1", "1", models.StatusWaiting, 1)
	ctx := context.Background()

	booking, err := f.promotions.PromoteNext(ctx, f.train.ID, testDate)

	require.NoError(t, err)
	assert.Nil(t, booking)

	// Nothing changed: the booking is still Waiting at the head.
	stored, _ := f.bookings.BookingByID(ctx, waiting.ID)
	assert.Equal(t, models.StatusWaiting, stored.Status)
	entries, _ := f.waitlist.Entries(ctx, f.train.ID, testDate)
	assert.Equal(t, []string{waiting.ID}, entries)
}

func TestPromotionService_PromoteNext_ConfirmsHeadAndRenumbers(t *testing.T) {
	f := setupBookingFixture(2, 1)
	f.seedBooking("user-0", "1", models.StatusConfirmed, 0)
	head := f.seedBooking("user-1", "2", models.StatusWaiting, 1)
	second := f.seedBooking("user-2", "3", models.StatusWaiting, 2)
	third := f.seedBooking("user-3", "4", models.StatusWaiting, 3)
	ctx := context.Background()

	booking, err := f.promotions.PromoteNext(ctx, f.train.ID, testDate)

	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, head.ID, booking.ID)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Zero(t, booking.WaitingPosition)
	require.NotNil(t, booking.ConfirmedAt)

	available, err := f.inventory.Available(ctx, f.train.ID, testDate)
	require.NoError(t, err)
	assert.Zero(t, available)

	movedUp, _ := f.bookings.BookingByID(ctx, second.ID)
	assert.Equal(t, 1, movedUp.WaitingPosition)
	last, _ := f.bookings.BookingByID(ctx, third.ID)
	assert.Equal(t, 2, last.WaitingPosition)

	types := f.publisher.eventTypes()
	assert.Contains(t, types, "booking-promoted")
	assert.Contains(t, types, "booking-status-update")
	assert.Contains(t, types, "waiting-position-update")
	assert.Contains(t, types, "seat-availability-changed")

	// The promotion event goes out before the position updates.
	promotedAt, moveAt := -1, -1
	for i, eventType := range types {
		if eventType == "booking-promoted" && promotedAt < 0 {
			promotedAt = i
		}
		if eventType == "waiting-position-update" && moveAt < 0 {
			moveAt = i
		}
	}
	assert.Less(t, promotedAt, moveAt)
}

func TestPromotionService_PromoteNext_StaleEntry(t *testing.T) {
	f := setupBookingFixture(1, 1)
	f.waitlist.lists[ledgerKey(f.train.ID, testDate)] = []string{"ghost"}
	ctx := context.Background()

	_, err := f.promotions.PromoteNext(ctx, f.train.ID, testDate)

	assert.ErrorIs(t, err, status.ErrPromotionConflict)

	// The seat went back and the stale entry is gone.
	available, err := f.inventory.Available(ctx, f.train.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, available)
	entries, _ := f.waitlist.Entries(ctx, f.train.ID, testDate)
	assert.Empty(t, entries)
}

func TestPromotionService_PromoteNext_SkipsNonWaitingHead(t *testing.T) {
	f := setupBookingFixture(1, 1)
	booking := f.seedBooking("user-1", "1", models.StatusCancelled, 0)
	f.waitlist.lists[ledgerKey(f.train.ID, testDate)] = []string{booking.ID}
	ctx := context.Background()

	_, err := f.promotions.PromoteNext(ctx, f.train.ID, testDate)

	assert.ErrorIs(t, err, status.ErrPromotionConflict)

	available, err := f.inventory.Available(ctx, f.train.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, available)

	stored, _ := f.bookings.BookingByID(ctx, booking.ID)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}
