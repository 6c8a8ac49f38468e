package models

import "time"

const (
	StageRAC     = "rac"     // Waiting -> RAC
	StageConfirm = "confirm" // RAC -> Confirmed

	TransitionPending   = "pending"
	TransitionClaimed   = "claimed"
	TransitionCompleted = "completed"
	TransitionCanceled  = "canceled"
)

// Transition is a durable scheduled status change for a booking. Rows are
// claimed atomically by the worker, so a transition fires on at most one
// instance and canceling after the claim is a no-op. ClaimedAt timestamps
// the claim; a row whose worker died is reclaimed once the claim goes stale.
type Transition struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	FireAt    time.Time `json:"fire_at"`
	ClaimedAt time.Time `json:"claimed_at"`
}
