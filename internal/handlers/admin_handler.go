package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"train-booking/services"
)

// AdminHandler exposes the operational surface: kicking off the staged
// confirmation flow, forcing a promotion pass and rebuilding the Redis
// ledgers. Superusers only.
type AdminHandler struct {
	bookingService    *services.BookingService
	promotionService  *services.PromotionService
	transitionService *services.TransitionService
}

func NewAdminHandler(
	bookingService *services.BookingService,
	promotionService *services.PromotionService,
	transitionService *services.TransitionService,
) *AdminHandler {
	return &AdminHandler{
		bookingService:    bookingService,
		promotionService:  promotionService,
		transitionService: transitionService,
	}
}

func (h *AdminHandler) requireSuperuser(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewForbiddenError("Superuser access required", nil)
	}
	return nil
}

// ScheduleConfirmation - start the Waiting -> RAC -> Confirmed flow for a booking
func (h *AdminHandler) ScheduleConfirmation(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	bookingID := e.Request.PathValue("bookingId")
	transition, err := h.transitionService.ScheduleConfirmation(e.Request.Context(), bookingID)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message":    "Confirmation scheduled",
		"transition": transition,
	})
}

// PromoteNext - force one promotion pass for a train and date
func (h *AdminHandler) PromoteNext(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	trainID := e.Request.PathValue("trainId")
	journeyDate := e.Request.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", journeyDate); err != nil {
		return apis.NewBadRequestError("date must be YYYY-MM-DD", err)
	}

	booking, err := h.promotionService.PromoteNext(e.Request.Context(), trainID, journeyDate)
	if err != nil {
		return bookingError(err)
	}
	if booking == nil {
		return e.JSON(http.StatusOK, map[string]any{
			"message": "Nothing to promote",
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message": "Booking promoted",
		"booking": booking,
	})
}

// GetWaitlist - the waiting list dashboard for a train and date
func (h *AdminHandler) GetWaitlist(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	trainID := e.Request.PathValue("trainId")
	journeyDate := e.Request.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", journeyDate); err != nil {
		return apis.NewBadRequestError("date must be YYYY-MM-DD", err)
	}

	waiting, available, err := h.bookingService.WaitlistSnapshot(e.Request.Context(), trainID, journeyDate)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"train_id":        trainID,
		"journey_date":    journeyDate,
		"available_seats": available,
		"waiting_count":   len(waiting),
		"waiting":         waiting,
	})
}

// RemoveFromWaitlist - operator removal of a Waiting booking
func (h *AdminHandler) RemoveFromWaitlist(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	var req struct {
		BookingID string `json:"booking_id"`
	}
	if err := e.BindBody(&req); err != nil || req.BookingID == "" {
		return apis.NewBadRequestError("booking_id is required", err)
	}

	if err := h.bookingService.RemoveFromWaitlist(e.Request.Context(), req.BookingID); err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message": "Booking removed from waiting list",
	})
}

// RebuildLedgers - reseed the Redis counters and waiting lists from the database
func (h *AdminHandler) RebuildLedgers(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	restored, err := h.bookingService.RestoreLedgers(e.Request.Context())
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message":  "Ledgers rebuilt",
		"journeys": restored,
	})
}
