package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"train-booking/services"
)

type TrainHandler struct {
	trains services.TrainStore
}

func NewTrainHandler(trains services.TrainStore) *TrainHandler {
	return &TrainHandler{trains: trains}
}

// ListTrains - all trains
func (h *TrainHandler) ListTrains(e *core.RequestEvent) error {
	trains, err := h.trains.Trains(e.Request.Context())
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"trains": trains,
		"total":  len(trains),
	})
}

// GetTrain - one train by id
func (h *TrainHandler) GetTrain(e *core.RequestEvent) error {
	trainID := e.Request.PathValue("trainId")
	train, err := h.trains.TrainByID(e.Request.Context(), trainID)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, train)
}
