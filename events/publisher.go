package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	pubnub "github.com/pubnub/go"

	"train-booking/models"
	"train-booking/utils"
)

// Publisher is the abstract event sink the core emits domain events to.
// Delivery is fire-and-forget: implementations must never propagate
// transport failures back into a committed state transition.
type Publisher interface {
	Publish(ctx context.Context, event models.DomainEvent)
}

// PubNubPublisher fans events out to the WebSocket/notification layer via
// PubNub channels, behind a circuit breaker so a broken transport does not
// slow down every booking.
type PubNubPublisher struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub-publisher"),
	}
}

func (p *PubNubPublisher) Publish(ctx context.Context, event models.DomainEvent) {
	err := p.breaker.Execute(ctx, func() error {
		_, _, err := p.pubnub.Publish().
			Channel(event.Channel()).
			Message(envelope(event)).
			Execute()
		return err
	})
	if err != nil {
		slog.Error("event publish failed",
			"type", event.EventType(),
			"channel", event.Channel(),
			"error", err,
		)
	}
}

func envelope(event models.DomainEvent) map[string]any {
	return map[string]any{
		"id":         uuid.NewString(),
		"type":       event.EventType(),
		"data":       event,
		"emitted_at": time.Now().Unix(),
	}
}

// NopPublisher drops every event. Used when no PubNub keys are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event models.DomainEvent) {}
