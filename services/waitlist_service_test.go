package services

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-booking/internal/status"
)

func setupTestWaitlistService() (*WaitlistService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return &WaitlistService{Redis: db}, mock
}

func TestWaitlistService_Append_ReturnsPosition(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectEval(appendWaitlistScript, []string{"waitlist:train-1:2026-09-15"}, "booking-1").SetVal(int64(3))

	position, err := service.Append(context.Background(), "train-1", "2026-09-15", "booking-1")

	require.NoError(t, err)
	assert.Equal(t, 3, position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistService_PopLowest_ReturnsHead(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectLPop("waitlist:train-1:2026-09-15").SetVal("booking-1")

	bookingID, err := service.PopLowest(context.Background(), "train-1", "2026-09-15")

	require.NoError(t, err)
	assert.Equal(t, "booking-1", bookingID)
}

func TestWaitlistService_PopLowest_Empty(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectLPop("waitlist:train-1:2026-09-15").RedisNil()

	_, err := service.PopLowest(context.Background(), "train-1", "2026-09-15")

	assert.ErrorIs(t, err, status.ErrWaitlistEmpty)
}

func TestWaitlistService_Remove(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectLRem("waitlist:train-1:2026-09-15", 1, "booking-2").SetVal(1)

	removed, err := service.Remove(context.Background(), "train-1", "2026-09-15", "booking-2")

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestWaitlistService_Entries_PreservesOrder(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectLRange("waitlist:train-1:2026-09-15", 0, -1).SetVal([]string{"booking-1", "booking-2", "booking-3"})

	entries, err := service.Entries(context.Background(), "train-1", "2026-09-15")

	require.NoError(t, err)
	assert.Equal(t, []string{"booking-1", "booking-2", "booking-3"}, entries)
}

func TestWaitlistService_Rebuild_SeedsEmptyList(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectExists("waitlist:train-1:2026-09-15").SetVal(0)
	mock.ExpectRPush("waitlist:train-1:2026-09-15", "booking-1", "booking-2").SetVal(2)

	err := service.Rebuild(context.Background(), "train-1", "2026-09-15", []string{"booking-1", "booking-2"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistService_Rebuild_SkipsExistingList(t *testing.T) {
	service, mock := setupTestWaitlistService()
	defer mock.ClearExpect()

	mock.ExpectExists("waitlist:train-1:2026-09-15").SetVal(1)

	err := service.Rebuild(context.Background(), "train-1", "2026-09-15", []string{"booking-1"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
