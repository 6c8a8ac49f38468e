package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainEvents_Channels(t *testing.T) {
	cases := []struct {
		event     DomainEvent
		eventType string
		channel   string
	}{
		{BookingCreated{UserID: "u1"}, "booking-created", "user-u1"},
		{BookingCancelled{UserID: "u1"}, "booking-cancelled", "user-u1"},
		{BookingPromoted{UserID: "u2"}, "booking-promoted", "user-u2"},
		{WaitingPositionChanged{UserID: "u2"}, "waiting-position-update", "user-u2"},
		{BookingStatusUpdate{UserID: "u3"}, "booking-status-update", "user-u3"},
		{SeatAvailabilityChanged{TrainID: "t1"}, "seat-availability-changed", "train-t1"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.eventType, tc.event.EventType())
		assert.Equal(t, tc.channel, tc.event.Channel())
	}
}

func TestBooking_HoldsSeat(t *testing.T) {
	assert.True(t, (&Booking{Status: StatusConfirmed}).HoldsSeat())
	assert.True(t, (&Booking{Status: StatusRAC}).HoldsSeat())
	assert.False(t, (&Booking{Status: StatusWaiting}).HoldsSeat())
	assert.False(t, (&Booking{Status: StatusCancelled}).HoldsSeat())
}
