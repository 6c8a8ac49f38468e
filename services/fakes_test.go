package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"train-booking/internal/status"
	"train-booking/models"
)

// In-memory doubles for the stores and ledgers, so the admission, promotion
// and transition flows can be exercised end to end without Redis or a
// database.

type fakeTrainStore struct {
	trains map[string]*models.Train
}

func newFakeTrainStore(trains ...*models.Train) *fakeTrainStore {
	f := &fakeTrainStore{trains: make(map[string]*models.Train)}
	for _, train := range trains {
		f.trains[train.ID] = train
	}
	return f
}

func (f *fakeTrainStore) TrainByID(ctx context.Context, id string) (*models.Train, error) {
	train, ok := f.trains[id]
	if !ok {
		return nil, status.ErrTrainNotFound
	}
	clone := *train
	return &clone, nil
}

func (f *fakeTrainStore) Trains(ctx context.Context) ([]*models.Train, error) {
	trains := make([]*models.Train, 0, len(f.trains))
	for _, train := range f.trains {
		clone := *train
		trains = append(trains, &clone)
	}
	return trains, nil
}

type fakeBookingStore struct {
	seq      int
	bookings map[string]*models.Booking

	failCreate error
	failUpdate error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]*models.Booking)}
}

func (f *fakeBookingStore) add(booking *models.Booking) *models.Booking {
	if booking.ID == "" {
		f.seq++
		booking.ID = fmt.Sprintf("booking-%d", f.seq)
	}
	clone := *booking
	f.bookings[booking.ID] = &clone
	return booking
}

func (f *fakeBookingStore) BookingByID(ctx context.Context, id string) (*models.Booking, error) {
	booking, ok := f.bookings[id]
	if !ok {
		return nil, status.ErrBookingNotFound
	}
	clone := *booking
	return &clone, nil
}

func (f *fakeBookingStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.add(booking)
	return nil
}

func (f *fakeBookingStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	if _, ok := f.bookings[booking.ID]; !ok {
		return status.ErrBookingNotFound
	}
	clone := *booking
	f.bookings[booking.ID] = &clone
	return nil
}

func (f *fakeBookingStore) DeleteBooking(ctx context.Context, id string) error {
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingStore) SeatTaken(ctx context.Context, trainID, journeyDate, seatNumber, coachNumber string) (bool, error) {
	for _, booking := range f.bookings {
		if booking.TrainID == trainID && booking.JourneyDate == journeyDate &&
			booking.SeatNumber == seatNumber && booking.CoachNumber == coachNumber &&
			(booking.Status == models.StatusConfirmed || booking.Status == models.StatusRAC) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) UserHasBooking(ctx context.Context, userID, trainID, journeyDate string) (bool, error) {
	for _, booking := range f.bookings {
		if booking.UserID == userID && booking.TrainID == trainID &&
			booking.JourneyDate == journeyDate && booking.Status != models.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) CountByStatus(ctx context.Context, trainID, journeyDate, bookingStatus string) (int, error) {
	count := 0
	for _, booking := range f.bookings {
		if booking.TrainID == trainID && booking.JourneyDate == journeyDate && booking.Status == bookingStatus {
			count++
		}
	}
	return count, nil
}

func (f *fakeBookingStore) WaitingBookings(ctx context.Context, trainID, journeyDate string) ([]*models.Booking, error) {
	var waiting []*models.Booking
	for _, booking := range f.bookings {
		if booking.TrainID == trainID && booking.JourneyDate == journeyDate && booking.Status == models.StatusWaiting {
			clone := *booking
			waiting = append(waiting, &clone)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].WaitingPosition < waiting[j].WaitingPosition
	})
	return waiting, nil
}

func (f *fakeBookingStore) BookingsForUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for _, booking := range f.bookings {
		if booking.UserID == userID {
			clone := *booking
			bookings = append(bookings, &clone)
		}
	}
	return bookings, nil
}

func (f *fakeBookingStore) ActiveJourneys(ctx context.Context) ([]Journey, error) {
	seen := make(map[Journey]bool)
	var journeys []Journey
	for _, booking := range f.bookings {
		if booking.Status == models.StatusCancelled {
			continue
		}
		journey := Journey{TrainID: booking.TrainID, JourneyDate: booking.JourneyDate}
		if !seen[journey] {
			seen[journey] = true
			journeys = append(journeys, journey)
		}
	}
	return journeys, nil
}

type fakeTransitionStore struct {
	seq         int
	transitions map[string]*models.Transition
}

func newFakeTransitionStore() *fakeTransitionStore {
	return &fakeTransitionStore{transitions: make(map[string]*models.Transition)}
}

func (f *fakeTransitionStore) CreateTransition(ctx context.Context, transition *models.Transition) error {
	if transition.ID == "" {
		f.seq++
		transition.ID = fmt.Sprintf("transition-%d", f.seq)
	}
	clone := *transition
	f.transitions[transition.ID] = &clone
	return nil
}

func (f *fakeTransitionStore) DueTransitions(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.Transition, error) {
	var due []*models.Transition
	for _, transition := range f.transitions {
		pendingDue := transition.Status == models.TransitionPending && !transition.FireAt.After(now)
		staleClaim := transition.Status == models.TransitionClaimed && !transition.ClaimedAt.After(staleBefore)
		if pendingDue || staleClaim {
			clone := *transition
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeTransitionStore) ClaimTransition(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	transition, ok := f.transitions[id]
	if !ok {
		return false, nil
	}
	switch {
	case transition.Status == models.TransitionPending:
	case transition.Status == models.TransitionClaimed && !transition.ClaimedAt.After(staleBefore):
	default:
		return false, nil
	}
	transition.Status = models.TransitionClaimed
	transition.ClaimedAt = now
	return true, nil
}

func (f *fakeTransitionStore) CompleteTransition(ctx context.Context, id string) error {
	if transition, ok := f.transitions[id]; ok {
		transition.Status = models.TransitionCompleted
	}
	return nil
}

func (f *fakeTransitionStore) CancelTransition(ctx context.Context, id string) error {
	if transition, ok := f.transitions[id]; ok {
		transition.Status = models.TransitionCanceled
	}
	return nil
}

func (f *fakeTransitionStore) CancelPendingForBooking(ctx context.Context, bookingID string) (int, error) {
	cancelled := 0
	for _, transition := range f.transitions {
		if transition.BookingID == bookingID && transition.Status == models.TransitionPending {
			transition.Status = models.TransitionCanceled
			cancelled++
		}
	}
	return cancelled, nil
}

type seatCounter struct {
	total     int
	available int
}

type fakeInventory struct {
	counters map[string]*seatCounter
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{counters: make(map[string]*seatCounter)}
}

func ledgerKey(trainID, journeyDate string) string {
	return trainID + "|" + journeyDate
}

func (f *fakeInventory) seed(trainID, journeyDate string, total, available int) {
	f.counters[ledgerKey(trainID, journeyDate)] = &seatCounter{total: total, available: available}
}

func (f *fakeInventory) Reserve(ctx context.Context, trainID, journeyDate string) (int, error) {
	counter, ok := f.counters[ledgerKey(trainID, journeyDate)]
	if !ok {
		return 0, status.ErrInventoryMissing
	}
	if counter.available <= 0 {
		return 0, status.ErrExhausted
	}
	counter.available--
	return counter.available, nil
}

func (f *fakeInventory) Release(ctx context.Context, trainID, journeyDate string) (int, error) {
	counter, ok := f.counters[ledgerKey(trainID, journeyDate)]
	if !ok {
		return 0, status.ErrInventoryMissing
	}
	if counter.available >= counter.total {
		return 0, status.ErrAtCapacity
	}
	counter.available++
	return counter.available, nil
}

func (f *fakeInventory) Ensure(ctx context.Context, trainID, journeyDate string, total, available int) (int, error) {
	if counter, ok := f.counters[ledgerKey(trainID, journeyDate)]; ok {
		return counter.available, nil
	}
	f.seed(trainID, journeyDate, total, available)
	return available, nil
}

func (f *fakeInventory) Available(ctx context.Context, trainID, journeyDate string) (int, error) {
	counter, ok := f.counters[ledgerKey(trainID, journeyDate)]
	if !ok {
		return 0, status.ErrInventoryMissing
	}
	return counter.available, nil
}

type fakeWaitlist struct {
	lists map[string][]string
}

func newFakeWaitlist() *fakeWaitlist {
	return &fakeWaitlist{lists: make(map[string][]string)}
}

func (f *fakeWaitlist) Append(ctx context.Context, trainID, journeyDate, bookingID string) (int, error) {
	key := ledgerKey(trainID, journeyDate)
	f.lists[key] = append(f.lists[key], bookingID)
	return len(f.lists[key]), nil
}

func (f *fakeWaitlist) PopLowest(ctx context.Context, trainID, journeyDate string) (string, error) {
	key := ledgerKey(trainID, journeyDate)
	if len(f.lists[key]) == 0 {
		return "", status.ErrWaitlistEmpty
	}
	head := f.lists[key][0]
	f.lists[key] = f.lists[key][1:]
	return head, nil
}

func (f *fakeWaitlist) PushFront(ctx context.Context, trainID, journeyDate, bookingID string) error {
	key := ledgerKey(trainID, journeyDate)
	f.lists[key] = append([]string{bookingID}, f.lists[key]...)
	return nil
}

func (f *fakeWaitlist) Remove(ctx context.Context, trainID, journeyDate, bookingID string) (int, error) {
	key := ledgerKey(trainID, journeyDate)
	for i, id := range f.lists[key] {
		if id == bookingID {
			f.lists[key] = append(f.lists[key][:i], f.lists[key][i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeWaitlist) Entries(ctx context.Context, trainID, journeyDate string) ([]string, error) {
	entries := f.lists[ledgerKey(trainID, journeyDate)]
	return append([]string(nil), entries...), nil
}

func (f *fakeWaitlist) Length(ctx context.Context, trainID, journeyDate string) (int, error) {
	return len(f.lists[ledgerKey(trainID, journeyDate)]), nil
}

func (f *fakeWaitlist) Rebuild(ctx context.Context, trainID, journeyDate string, bookingIDs []string) error {
	key := ledgerKey(trainID, journeyDate)
	if len(f.lists[key]) > 0 || len(bookingIDs) == 0 {
		return nil
	}
	f.lists[key] = append([]string(nil), bookingIDs...)
	return nil
}

type fakeLocker struct {
	acquired int
	released int
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (string, error) {
	f.acquired++
	return "token", nil
}

func (f *fakeLocker) Release(ctx context.Context, key, token string) error {
	f.released++
	return nil
}

type recorderPublisher struct {
	events []models.DomainEvent
}

func (r *recorderPublisher) Publish(ctx context.Context, event models.DomainEvent) {
	r.events = append(r.events, event)
}

func (r *recorderPublisher) eventTypes() []string {
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.EventType())
	}
	return types
}
