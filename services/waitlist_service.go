package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"train-booking/internal/status"
)

// The waiting list for a (train, journey date) is a Redis list of booking
// ids. Position 1 is the list head, so the list order is the promotion
// order and positions are dense by construction.
const appendWaitlistScript = `
redis.call("RPUSH", KEYS[1], ARGV[1])
return redis.call("LLEN", KEYS[1])
`

type WaitlistService struct {
	Redis *redis.Client
}

func NewWaitlistService(redisClient *redis.Client) *WaitlistService {
	return &WaitlistService{Redis: redisClient}
}

func waitlistKey(trainID, journeyDate string) string {
	return fmt.Sprintf("waitlist:%s:%s", trainID, journeyDate)
}

// Append adds a booking to the tail and returns its 1-based position.
func (s *WaitlistService) Append(ctx context.Context, trainID, journeyDate, bookingID string) (int, error) {
	position, err := s.Redis.Eval(ctx, appendWaitlistScript,
		[]string{waitlistKey(trainID, journeyDate)}, bookingID).Int64()
	if err != nil {
		return 0, fmt.Errorf("waitlist append: %w", err)
	}
	return int(position), nil
}

// PopLowest removes and returns the booking with position 1.
func (s *WaitlistService) PopLowest(ctx context.Context, trainID, journeyDate string) (string, error) {
	bookingID, err := s.Redis.LPop(ctx, waitlistKey(trainID, journeyDate)).Result()
	if err == redis.Nil {
		return "", status.ErrWaitlistEmpty
	} else if err != nil {
		return "", fmt.Errorf("waitlist pop: %w", err)
	}
	return bookingID, nil
}

// PushFront puts a booking back at position 1. Used to undo a pop when the
// promotion that consumed it cannot complete.
func (s *WaitlistService) PushFront(ctx context.Context, trainID, journeyDate, bookingID string) error {
	if err := s.Redis.LPush(ctx, waitlistKey(trainID, journeyDate), bookingID).Err(); err != nil {
		return fmt.Errorf("waitlist push front: %w", err)
	}
	return nil
}

// Remove deletes a booking from anywhere in the list (cancellation of a
// Waiting booking). Returns how many entries were removed.
func (s *WaitlistService) Remove(ctx context.Context, trainID, journeyDate, bookingID string) (int, error) {
	removed, err := s.Redis.LRem(ctx, waitlistKey(trainID, journeyDate), 1, bookingID).Result()
	if err != nil {
		return 0, fmt.Errorf("waitlist remove: %w", err)
	}
	return int(removed), nil
}

// Entries returns the booking ids in promotion order; index i holds
// position i+1.
func (s *WaitlistService) Entries(ctx context.Context, trainID, journeyDate string) ([]string, error) {
	entries, err := s.Redis.LRange(ctx, waitlistKey(trainID, journeyDate), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("waitlist entries: %w", err)
	}
	return entries, nil
}

// Length returns the number of waiting bookings.
func (s *WaitlistService) Length(ctx context.Context, trainID, journeyDate string) (int, error) {
	length, err := s.Redis.LLen(ctx, waitlistKey(trainID, journeyDate)).Result()
	if err != nil {
		return 0, fmt.Errorf("waitlist length: %w", err)
	}
	return int(length), nil
}

// Rebuild seeds the list from persisted bookings after a restart. An
// existing list is left untouched.
func (s *WaitlistService) Rebuild(ctx context.Context, trainID, journeyDate string, bookingIDs []string) error {
	key := waitlistKey(trainID, journeyDate)

	exists, err := s.Redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("waitlist rebuild: %w", err)
	}
	if exists == 1 || len(bookingIDs) == 0 {
		return nil
	}

	values := make([]any, len(bookingIDs))
	for i, id := range bookingIDs {
		values[i] = id
	}
	if err := s.Redis.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("waitlist rebuild: %w", err)
	}
	return nil
}
