package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"train-booking/internal/status"
)

// Seat counters live in one Redis hash per (train, journey date). Every
// mutation is a single Lua script, so reserve/release are linearizable per
// key without any cross-key coordination.
const reserveSeatScript = `
local available = redis.call("HGET", KEYS[1], "available")
if not available then
	return -2
end
if tonumber(available) <= 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "available", -1)
`

const releaseSeatScript = `
local total = redis.call("HGET", KEYS[1], "total")
local available = redis.call("HGET", KEYS[1], "available")
if not total or not available then
	return -2
end
if tonumber(available) >= tonumber(total) then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "available", 1)
`

const ensureInventoryScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
	return tonumber(redis.call("HGET", KEYS[1], "available"))
end
redis.call("HSET", KEYS[1], "total", ARGV[1], "available", ARGV[2])
return tonumber(ARGV[2])
`

type InventoryService struct {
	Redis *redis.Client
}

func NewInventoryService(redisClient *redis.Client) *InventoryService {
	return &InventoryService{Redis: redisClient}
}

func inventoryKey(trainID, journeyDate string) string {
	return fmt.Sprintf("inventory:%s:%s", trainID, journeyDate)
}

// Reserve atomically takes one seat and returns the remaining count.
// status.ErrExhausted means no seat was available (nothing changed);
// status.ErrInventoryMissing means the ledger was never initialized for
// this key.
func (s *InventoryService) Reserve(ctx context.Context, trainID, journeyDate string) (int, error) {
	result, err := s.Redis.Eval(ctx, reserveSeatScript, []string{inventoryKey(trainID, journeyDate)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("inventory reserve: %w", err)
	}

	switch result {
	case -1:
		return 0, status.ErrExhausted
	case -2:
		return 0, status.ErrInventoryMissing
	}
	return int(result), nil
}

// Release atomically frees one seat and returns the new available count.
// status.ErrAtCapacity signals a release past total capacity: an invariant
// violation the caller logs and does not retry.
func (s *InventoryService) Release(ctx context.Context, trainID, journeyDate string) (int, error) {
	result, err := s.Redis.Eval(ctx, releaseSeatScript, []string{inventoryKey(trainID, journeyDate)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("inventory release: %w", err)
	}

	switch result {
	case -1:
		return 0, status.ErrAtCapacity
	case -2:
		return 0, status.ErrInventoryMissing
	}
	return int(result), nil
}

// Ensure initializes the counters for a key if they do not exist yet and
// returns the available count. Existing counters are never overwritten.
func (s *InventoryService) Ensure(ctx context.Context, trainID, journeyDate string, total, available int) (int, error) {
	result, err := s.Redis.Eval(ctx, ensureInventoryScript,
		[]string{inventoryKey(trainID, journeyDate)}, total, available).Int64()
	if err != nil {
		return 0, fmt.Errorf("inventory ensure: %w", err)
	}
	return int(result), nil
}

// Available reads the current available count without mutating anything.
func (s *InventoryService) Available(ctx context.Context, trainID, journeyDate string) (int, error) {
	available, err := s.Redis.HGet(ctx, inventoryKey(trainID, journeyDate), "available").Int()
	if err == redis.Nil {
		return 0, status.ErrInventoryMissing
	} else if err != nil {
		return 0, fmt.Errorf("inventory read: %w", err)
	}
	return available, nil
}
