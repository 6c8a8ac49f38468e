package models

import "fmt"

// DomainEvent is anything the core emits to the external notification layer.
// Delivery is fire-and-forget: a failed publish never rolls back the state
// transition that produced the event.
type DomainEvent interface {
	EventType() string
	Channel() string
}

type BookingCreated struct {
	BookingID       string `json:"booking_id"`
	PNR             string `json:"pnr"`
	UserID          string `json:"user_id"`
	TrainID         string `json:"train_id"`
	JourneyDate     string `json:"journey_date"`
	Status          string `json:"status"`
	WaitingPosition int    `json:"waiting_position,omitempty"`
}

func (e BookingCreated) EventType() string { return "booking-created" }
func (e BookingCreated) Channel() string   { return userChannel(e.UserID) }

type BookingCancelled struct {
	BookingID   string `json:"booking_id"`
	PNR         string `json:"pnr"`
	UserID      string `json:"user_id"`
	TrainID     string `json:"train_id"`
	JourneyDate string `json:"journey_date"`
	WillPromote bool   `json:"will_promote"`
}

func (e BookingCancelled) EventType() string { return "booking-cancelled" }
func (e BookingCancelled) Channel() string   { return userChannel(e.UserID) }

type BookingPromoted struct {
	BookingID   string `json:"booking_id"`
	PNR         string `json:"pnr"`
	UserID      string `json:"user_id"`
	TrainID     string `json:"train_id"`
	JourneyDate string `json:"journey_date"`
}

func (e BookingPromoted) EventType() string { return "booking-promoted" }
func (e BookingPromoted) Channel() string   { return userChannel(e.UserID) }

type WaitingPositionChanged struct {
	BookingID   string `json:"booking_id"`
	PNR         string `json:"pnr"`
	UserID      string `json:"user_id"`
	NewPosition int    `json:"new_position"`
}

func (e WaitingPositionChanged) EventType() string { return "waiting-position-update" }
func (e WaitingPositionChanged) Channel() string   { return userChannel(e.UserID) }

type BookingStatusUpdate struct {
	BookingID string `json:"booking_id"`
	PNR       string `json:"pnr"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

func (e BookingStatusUpdate) EventType() string { return "booking-status-update" }
func (e BookingStatusUpdate) Channel() string   { return userChannel(e.UserID) }

// SeatAvailabilityChanged doubles as the cache invalidation signal: it fires
// whenever a train's available-seat count changes for a journey date.
type SeatAvailabilityChanged struct {
	TrainID     string `json:"train_id"`
	JourneyDate string `json:"journey_date"`
	Available   int    `json:"available"`
}

func (e SeatAvailabilityChanged) EventType() string { return "seat-availability-changed" }
func (e SeatAvailabilityChanged) Channel() string {
	return fmt.Sprintf("train-%s", e.TrainID)
}

func userChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}
