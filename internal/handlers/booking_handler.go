package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"train-booking/internal/status"
	"train-booking/models"
	"train-booking/services"
)

type BookingHandler struct {
	bookingService *services.BookingService
}

func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CreateBooking - book a seat, or join the waiting list when the train is full
func (h *BookingHandler) CreateBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TrainID          string `json:"train_id"`
		JourneyDate      string `json:"journey_date"`
		PassengerName    string `json:"passenger_name"`
		PassengerAge     int    `json:"passenger_age"`
		SeatNumber       string `json:"seat_number"`
		CoachNumber      string `json:"coach_number"`
		AllowWaitingList *bool  `json:"allow_waiting_list"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TrainID == "" || req.PassengerName == "" || req.SeatNumber == "" || req.CoachNumber == "" {
		return apis.NewBadRequestError("Missing required booking fields", nil)
	}
	if _, err := time.Parse("2006-01-02", req.JourneyDate); err != nil {
		return apis.NewBadRequestError("journey_date must be YYYY-MM-DD", err)
	}

	allowWaitingList := true
	if req.AllowWaitingList != nil {
		allowWaitingList = *req.AllowWaitingList
	}

	booking, err := h.bookingService.CreateBooking(e.Request.Context(), services.CreateBookingInput{
		UserID:           e.Auth.Id,
		TrainID:          req.TrainID,
		JourneyDate:      req.JourneyDate,
		PassengerName:    req.PassengerName,
		PassengerAge:     req.PassengerAge,
		SeatNumber:       req.SeatNumber,
		CoachNumber:      req.CoachNumber,
		AllowWaitingList: allowWaitingList,
	})
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"message": bookingMessage(booking),
		"booking": booking,
	})
}

// CancelBooking - cancel an own booking; a freed seat promotes the waiting list
func (h *BookingHandler) CancelBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	willPromote, err := h.bookingService.CancelBooking(e.Request.Context(), bookingID, e.Auth.Id)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message":      "Booking cancelled",
		"will_promote": willPromote,
	})
}

// ListBookings - the caller's bookings, newest first
func (h *BookingHandler) ListBookings(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookings, err := h.bookingService.BookingsForUser(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"bookings": bookings,
		"total":    len(bookings),
	})
}

// GetBooking - one booking, owner only
func (h *BookingHandler) GetBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	booking, err := h.bookingService.BookingForUser(e.Request.Context(), bookingID, e.Auth.Id)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, booking)
}

// GetAvailability - remaining seats and waiting list length for a train and date
func (h *BookingHandler) GetAvailability(e *core.RequestEvent) error {
	trainID := e.Request.PathValue("trainId")
	journeyDate := e.Request.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", journeyDate); err != nil {
		return apis.NewBadRequestError("date must be YYYY-MM-DD", err)
	}

	ctx := e.Request.Context()
	available, err := h.bookingService.AvailableSeats(ctx, trainID, journeyDate)
	if err != nil {
		return bookingError(err)
	}
	waiting, err := h.bookingService.WaitingCount(ctx, trainID, journeyDate)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"train_id":        trainID,
		"journey_date":    journeyDate,
		"available_seats": available,
		"waiting_count":   waiting,
	})
}

func bookingMessage(booking *models.Booking) string {
	if booking.Status == models.StatusWaiting {
		return "Train is full, you have been added to the waiting list"
	}
	return "Booking confirmed"
}

// bookingError maps the service error taxonomy onto HTTP statuses.
func bookingError(err error) error {
	switch {
	case errors.Is(err, status.ErrTrainNotFound),
		errors.Is(err, status.ErrBookingNotFound):
		return apis.NewNotFoundError(err.Error(), err)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError(err.Error(), err)
	case errors.Is(err, status.ErrSeatTaken),
		errors.Is(err, status.ErrDuplicateBooking),
		errors.Is(err, status.ErrNoCapacity),
		errors.Is(err, status.ErrNotWaiting):
		return apis.NewApiError(http.StatusConflict, err.Error(), err)
	case errors.Is(err, status.ErrLockTimeout):
		return apis.NewApiError(http.StatusServiceUnavailable, "System busy, please try again", err)
	default:
		return apis.NewInternalServerError("Something went wrong", err)
	}
}
