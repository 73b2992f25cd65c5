package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/model"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r, err := m.CreateRun(ctx, model.Run{Status: model.RunRunning, CityCount: 4})
	if err != nil || r.ID == "" || r.CreatedAt.IsZero() {
		t.Fatalf("CreateRun: %+v %v", r, err)
	}
	r.Status = model.RunFinished
	r.BestDistance = 4
	if err := m.UpdateRun(ctx, r); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	got, err := m.GetRun(ctx, r.ID)
	if err != nil || got.Status != model.RunFinished || got.BestDistance != 4 {
		t.Fatalf("GetRun: %+v %v", got, err)
	}
	if _, err := m.GetRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := m.UpdateRun(ctx, model.Run{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryListRunsPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		st := model.RunRunning
		if i%2 == 0 {
			st = model.RunFinished
		}
		if _, err := m.CreateRun(ctx, model.Run{Status: st}); err != nil {
			t.Fatal(err)
		}
	}
	page, next, _ := m.ListRuns(ctx, "", "", 2)
	if len(page) != 2 || next == "" {
		t.Fatalf("page1: %d %q", len(page), next)
	}
	page2, next2, _ := m.ListRuns(ctx, "", next, 10)
	if len(page2) != 3 || next2 != "" {
		t.Fatalf("page2: %d %q", len(page2), next2)
	}
	fin, _, _ := m.ListRuns(ctx, model.RunFinished, "", 0)
	if len(fin) != 3 {
		t.Fatalf("finished filter: %d", len(fin))
	}
}

func TestMemoryImprovements(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r, _ := m.CreateRun(ctx, model.Run{})
	for i := 1; i <= 4; i++ {
		if err := m.AppendImprovement(ctx, model.Improvement{RunID: r.ID, Seq: i, Distance: float64(10 - i)}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := m.ListImprovements(ctx, r.ID, 2, 0)
	if err != nil || len(got) != 2 || got[0].Seq != 3 {
		t.Fatalf("after 2: %+v %v", got, err)
	}
	if err := m.AppendImprovement(ctx, model.Improvement{RunID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemorySubscriptionsForEvent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://a", Events: []string{model.EventRunFinished}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://b", Events: []string{"*"}})
	subs, _ := m.GetSubscriptionsForEvent(ctx, model.EventRunImproved)
	if len(subs) != 1 || subs[0].URL != "http://b" {
		t.Fatalf("improved: %+v", subs)
	}
	subs, _ = m.GetSubscriptionsForEvent(ctx, model.EventRunFinished)
	if len(subs) != 2 {
		t.Fatalf("finished: %+v", subs)
	}
	if err := m.DeleteSubscription(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSubscription(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.EnqueueWebhook(ctx, "s1", model.EventRunImproved, "http://x", "k", []byte(`{}`))
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id || due[0].Status != "pending" {
		t.Fatalf("due: %+v", due)
	}
	later := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 3); err != nil {
		t.Fatal(err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry should not be due yet: %+v", due)
	}
	if err := m.FailWebhookDelivery(ctx, id, "gave up", 500, 3); err != nil {
		t.Fatal(err)
	}
	dlq, _ := m.ListWebhookDLQ(ctx, 0)
	if len(dlq) != 1 || dlq[0].DeliveryID != id || dlq[0].Attempts != 2 {
		t.Fatalf("dlq: %+v", dlq)
	}
}
