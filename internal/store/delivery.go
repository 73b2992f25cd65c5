package store

import "time"

type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

// DeadLetter is a delivery that exhausted its attempts.
type DeadLetter struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"deliveryId"`
	EventType  string    `json:"eventType"`
	URL        string    `json:"url"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
