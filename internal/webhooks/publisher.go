package webhooks

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kayky-cas/romaria-da-vovo/internal/store"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Event is the JSON body posted to subscribers.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	TS   string `json:"ts"`
	Data any    `json:"data"`
}

// Emit enqueues one delivery per subscription interested in eventType.
// It returns the number of deliveries queued.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) int {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, eventType)
	if err != nil {
		log.Printf("webhooks: subscriptions for %s: %v", eventType, err)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}
	body, err := json.Marshal(Event{
		ID:   "evt_" + uuid.New().String(),
		Type: eventType,
		TS:   time.Now().UTC().Format(time.RFC3339Nano),
		Data: data,
	})
	if err != nil {
		log.Printf("webhooks: marshal %s: %v", eventType, err)
		return 0
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			log.Printf("webhooks: enqueue %s for %s: %v", eventType, s.ID, err)
			continue
		}
		n++
	}
	return n
}
