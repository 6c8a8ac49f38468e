package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"train-booking/internal/status"
	"train-booking/models"
	"train-booking/services"
)

// PocketBaseStore implements the service store interfaces on top of the
// PocketBase record API. It is the durable side of the system; the Redis
// ledgers are rebuilt from it on boot.
type PocketBaseStore struct {
	app core.App
}

var (
	_ services.TrainStore      = (*PocketBaseStore)(nil)
	_ services.BookingStore    = (*PocketBaseStore)(nil)
	_ services.TransitionStore = (*PocketBaseStore)(nil)
)

func New(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) TrainByID(ctx context.Context, id string) (*models.Train, error) {
	record, err := s.app.FindRecordById("trains", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrTrainNotFound
		}
		return nil, err
	}
	return trainFromRecord(record), nil
}

func (s *PocketBaseStore) Trains(ctx context.Context) ([]*models.Train, error) {
	records, err := s.app.FindRecordsByFilter("trains", "id != ''", "train_number", 0, 0)
	if err != nil {
		return nil, err
	}
	trains := make([]*models.Train, 0, len(records))
	for _, record := range records {
		trains = append(trains, trainFromRecord(record))
	}
	return trains, nil
}

func (s *PocketBaseStore) BookingByID(ctx context.Context, id string) (*models.Booking, error) {
	record, err := s.app.FindRecordById("bookings", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrBookingNotFound
		}
		return nil, err
	}
	return bookingFromRecord(record), nil
}

func (s *PocketBaseStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	collection, err := s.app.FindCollectionByNameOrId("bookings")
	if err != nil {
		return err
	}
	record := core.NewRecord(collection)
	applyBooking(record, booking)
	if err := s.app.Save(record); err != nil {
		return err
	}
	booking.ID = record.Id
	booking.CreatedAt = record.GetDateTime("created").Time()
	return nil
}

func (s *PocketBaseStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	record, err := s.app.FindRecordById("bookings", booking.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrBookingNotFound
		}
		return err
	}
	applyBooking(record, booking)
	return s.app.Save(record)
}

func (s *PocketBaseStore) DeleteBooking(ctx context.Context, id string) error {
	record, err := s.app.FindRecordById("bookings", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	return s.app.Delete(record)
}

func (s *PocketBaseStore) SeatTaken(ctx context.Context, trainID, journeyDate, seatNumber, coachNumber string) (bool, error) {
	_, err := s.app.FindFirstRecordByFilter(
		"bookings",
		"train_id = {:train} && journey_date = {:date} && seat_number = {:seat} && coach_number = {:coach} && (status = 'Confirmed' || status = 'RAC')",
		dbx.Params{
			"train": trainID,
			"date":  journeyDate,
			"seat":  seatNumber,
			"coach": coachNumber,
		},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PocketBaseStore) UserHasBooking(ctx context.Context, userID, trainID, journeyDate string) (bool, error) {
	_, err := s.app.FindFirstRecordByFilter(
		"bookings",
		"user_id = {:user} && train_id = {:train} && journey_date = {:date} && status != 'Cancelled'",
		dbx.Params{
			"user":  userID,
			"train": trainID,
			"date":  journeyDate,
		},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PocketBaseStore) CountByStatus(ctx context.Context, trainID, journeyDate, bookingStatus string) (int, error) {
	count, err := s.app.CountRecords("bookings", dbx.HashExp{
		"train_id":     trainID,
		"journey_date": journeyDate,
		"status":       bookingStatus,
	})
	return int(count), err
}

func (s *PocketBaseStore) WaitingBookings(ctx context.Context, trainID, journeyDate string) ([]*models.Booking, error) {
	records, err := s.app.FindRecordsByFilter(
		"bookings",
		"train_id = {:train} && journey_date = {:date} && status = 'Waiting'",
		"waiting_position",
		0,
		0,
		dbx.Params{"train": trainID, "date": journeyDate},
	)
	if err != nil {
		return nil, err
	}
	bookings := make([]*models.Booking, 0, len(records))
	for _, record := range records {
		bookings = append(bookings, bookingFromRecord(record))
	}
	return bookings, nil
}

func (s *PocketBaseStore) BookingsForUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	records, err := s.app.FindRecordsByFilter(
		"bookings",
		"user_id = {:user}",
		"-created",
		0,
		0,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return nil, err
	}
	bookings := make([]*models.Booking, 0, len(records))
	for _, record := range records {
		bookings = append(bookings, bookingFromRecord(record))
	}
	return bookings, nil
}

func (s *PocketBaseStore) ActiveJourneys(ctx context.Context) ([]services.Journey, error) {
	var rows []struct {
		TrainID     string `db:"train_id"`
		JourneyDate string `db:"journey_date"`
	}
	err := s.app.DB().
		Select("train_id", "journey_date").
		Distinct(true).
		From("bookings").
		Where(dbx.Not(dbx.HashExp{"status": models.StatusCancelled})).
		All(&rows)
	if err != nil {
		return nil, err
	}
	journeys := make([]services.Journey, 0, len(rows))
	for _, row := range rows {
		journeys = append(journeys, services.Journey{
			TrainID:     row.TrainID,
			JourneyDate: row.JourneyDate,
		})
	}
	return journeys, nil
}

func (s *PocketBaseStore) CreateTransition(ctx context.Context, transition *models.Transition) error {
	collection, err := s.app.FindCollectionByNameOrId("transitions")
	if err != nil {
		return err
	}
	record := core.NewRecord(collection)
	record.Set("booking_id", transition.BookingID)
	record.Set("stage", transition.Stage)
	record.Set("status", transition.Status)
	record.Set("fire_at", transition.FireAt.UTC())
	if err := s.app.Save(record); err != nil {
		return err
	}
	transition.ID = record.Id
	return nil
}

func (s *PocketBaseStore) DueTransitions(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.Transition, error) {
	cutoff, err := types.ParseDateTime(now.UTC())
	if err != nil {
		return nil, err
	}
	stale, err := types.ParseDateTime(staleBefore.UTC())
	if err != nil {
		return nil, err
	}
	records, err := s.app.FindRecordsByFilter(
		"transitions",
		"(status = 'pending' && fire_at <= {:now}) || (status = 'claimed' && claimed_at <= {:stale})",
		"fire_at",
		limit,
		0,
		dbx.Params{"now": cutoff.String(), "stale": stale.String()},
	)
	if err != nil {
		return nil, err
	}
	transitions := make([]*models.Transition, 0, len(records))
	for _, record := range records {
		transitions = append(transitions, transitionFromRecord(record))
	}
	return transitions, nil
}

// ClaimTransition is a compare-and-swap on the status column, so exactly
// one worker wins each pending row. A claimed row is claimable again once
// its claim timestamp has gone stale.
func (s *PocketBaseStore) ClaimTransition(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	claimedAt, err := types.ParseDateTime(now.UTC())
	if err != nil {
		return false, err
	}
	stale, err := types.ParseDateTime(staleBefore.UTC())
	if err != nil {
		return false, err
	}
	result, err := s.app.DB().Update(
		"transitions",
		dbx.Params{"status": models.TransitionClaimed, "claimed_at": claimedAt.String()},
		dbx.Or(
			dbx.HashExp{"id": id, "status": models.TransitionPending},
			dbx.And(
				dbx.HashExp{"id": id, "status": models.TransitionClaimed},
				dbx.NewExp("claimed_at <= {:stale}", dbx.Params{"stale": stale.String()}),
			),
		),
	).Execute()
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PocketBaseStore) CompleteTransition(ctx context.Context, id string) error {
	_, err := s.app.DB().Update(
		"transitions",
		dbx.Params{"status": models.TransitionCompleted},
		dbx.HashExp{"id": id},
	).Execute()
	return err
}

func (s *PocketBaseStore) CancelTransition(ctx context.Context, id string) error {
	_, err := s.app.DB().Update(
		"transitions",
		dbx.Params{"status": models.TransitionCanceled},
		dbx.HashExp{"id": id},
	).Execute()
	return err
}

// CancelPendingForBooking cancels only pending rows: a transition that a
// worker already claimed keeps firing, matching the at-most-once contract.
func (s *PocketBaseStore) CancelPendingForBooking(ctx context.Context, bookingID string) (int, error) {
	result, err := s.app.DB().Update(
		"transitions",
		dbx.Params{"status": models.TransitionCanceled},
		dbx.HashExp{"booking_id": bookingID, "status": models.TransitionPending},
	).Execute()
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

func trainFromRecord(record *core.Record) *models.Train {
	fare, _ := decimal.NewFromString(record.GetString("fare"))
	return &models.Train{
		ID:          record.Id,
		TrainNumber: record.GetString("train_number"),
		Name:        record.GetString("name"),
		FromStation: record.GetString("from_station"),
		ToStation:   record.GetString("to_station"),
		TotalSeats:  record.GetInt("total_seats"),
		Fare:        fare,
	}
}

func bookingFromRecord(record *core.Record) *models.Booking {
	fare, _ := decimal.NewFromString(record.GetString("fare"))
	booking := &models.Booking{
		ID:              record.Id,
		PNR:             record.GetString("pnr"),
		UserID:          record.GetString("user_id"),
		TrainID:         record.GetString("train_id"),
		JourneyDate:     record.GetString("journey_date"),
		PassengerName:   record.GetString("passenger_name"),
		PassengerAge:    record.GetInt("passenger_age"),
		SeatNumber:      record.GetString("seat_number"),
		CoachNumber:     record.GetString("coach_number"),
		Status:          record.GetString("status"),
		WaitingPosition: record.GetInt("waiting_position"),
		Fare:            fare,
		CreatedAt:       record.GetDateTime("created").Time(),
	}
	if confirmedAt := record.GetDateTime("confirmed_at"); !confirmedAt.IsZero() {
		t := confirmedAt.Time()
		booking.ConfirmedAt = &t
	}
	return booking
}

func applyBooking(record *core.Record, booking *models.Booking) {
	record.Set("pnr", booking.PNR)
	record.Set("user_id", booking.UserID)
	record.Set("train_id", booking.TrainID)
	record.Set("journey_date", booking.JourneyDate)
	record.Set("passenger_name", booking.PassengerName)
	record.Set("passenger_age", booking.PassengerAge)
	record.Set("seat_number", booking.SeatNumber)
	record.Set("coach_number", booking.CoachNumber)
	record.Set("status", booking.Status)
	record.Set("waiting_position", booking.WaitingPosition)
	record.Set("fare", booking.Fare.String())
	if booking.ConfirmedAt != nil {
		record.Set("confirmed_at", booking.ConfirmedAt.UTC())
	} else {
		record.Set("confirmed_at", "")
	}
}

func transitionFromRecord(record *core.Record) *models.Transition {
	return &models.Transition{
		ID:        record.Id,
		BookingID: record.GetString("booking_id"),
		Stage:     record.GetString("stage"),
		Status:    record.GetString("status"),
		FireAt:    record.GetDateTime("fire_at").Time(),
		ClaimedAt: record.GetDateTime("claimed_at").Time(),
	}
}
