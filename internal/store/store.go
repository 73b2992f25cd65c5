package store

import (
	"context"
	"errors"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/model"
)

// Store is the persistence interface used by the run service.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, status, cursor string, limit int) (items []model.Run, nextCursor string, err error)
	UpdateRun(ctx context.Context, run model.Run) error

	// Improvements
	AppendImprovement(ctx context.Context, imp model.Improvement) error
	ListImprovements(ctx context.Context, runID string, afterSeq, limit int) ([]model.Improvement, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDLQ(ctx context.Context, limit int) ([]DeadLetter, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")
