package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Bookings created, by resulting status",
		},
		[]string{"status"},
	)

	bookingsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Bookings cancelled by users",
		},
	)

	promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Waiting bookings promoted to Confirmed",
		},
	)

	transitionsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitions_fired_total",
			Help: "Scheduled status transitions, by stage and result",
		},
		[]string{"stage", "result"},
	)

	waitlistLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitlist_length",
			Help: "Current waiting list length per train and journey date",
		},
		[]string{"train_id", "journey_date"},
	)

	availableSeats = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "available_seats",
			Help: "Current available seats per train and journey date",
		},
		[]string{"train_id", "journey_date"},
	)
)

func TrackBookingCreated(status string) {
	bookingsCreated.WithLabelValues(status).Inc()
}

func TrackBookingCancelled() {
	bookingsCancelled.Inc()
}

func TrackPromotion() {
	promotions.Inc()
}

func TrackTransition(stage, result string) {
	transitionsFired.WithLabelValues(stage, result).Inc()
}

func SetWaitlistLength(trainID, journeyDate string, length int) {
	waitlistLength.WithLabelValues(trainID, journeyDate).Set(float64(length))
}

func SetAvailableSeats(trainID, journeyDate string, available int) {
	availableSeats.WithLabelValues(trainID, journeyDate).Set(float64(available))
}

// Monitor periodically scrapes the Redis ledgers into the gauges so the
// dashboards stay correct even across restarts and external mutations.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collect(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	waitlistKeys, _ := m.redis.Keys(ctx, "waitlist:*").Result()
	for _, key := range waitlistKeys {
		trainID, journeyDate, ok := splitLedgerKey(key)
		if !ok {
			continue
		}
		length, _ := m.redis.LLen(ctx, key).Result()
		waitlistLength.WithLabelValues(trainID, journeyDate).Set(float64(length))
	}

	inventoryKeys, _ := m.redis.Keys(ctx, "inventory:*").Result()
	for _, key := range inventoryKeys {
		trainID, journeyDate, ok := splitLedgerKey(key)
		if !ok {
			continue
		}
		available, err := m.redis.HGet(ctx, key, "available").Int()
		if err != nil {
			continue
		}
		availableSeats.WithLabelValues(trainID, journeyDate).Set(float64(available))
	}
}

// keys look like "waitlist:<trainID>:<YYYY-MM-DD>"
func splitLedgerKey(key string) (trainID, journeyDate string, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
