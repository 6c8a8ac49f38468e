package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusWaiting   = "Waiting"
	StatusRAC       = "RAC"
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
)

// Booking is a single passenger reservation for a train on a journey date.
// WaitingPosition is the 1-based waiting list rank and is 0 for any booking
// that is not Waiting.
type Booking struct {
	ID              string          `json:"id"`
	PNR             string          `json:"pnr"`
	UserID          string          `json:"user_id"`
	TrainID         string          `json:"train_id"`
	JourneyDate     string          `json:"journey_date"` // YYYY-MM-DD
	PassengerName   string          `json:"passenger_name"`
	PassengerAge    int             `json:"passenger_age"`
	SeatNumber      string          `json:"seat_number"`
	CoachNumber     string          `json:"coach_number"`
	Status          string          `json:"status"`
	WaitingPosition int             `json:"waiting_position,omitempty"`
	Fare            decimal.Decimal `json:"fare"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HoldsSeat reports whether the booking counts as a seat holder on
// cancellation. RAC bookings count: cancelling one attempts a seat release
// and triggers a promotion.
func (b *Booking) HoldsSeat() bool {
	return b.Status == StatusConfirmed || b.Status == StatusRAC
}
