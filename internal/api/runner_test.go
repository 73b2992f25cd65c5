package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/model"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
	"github.com/kayky-cas/romaria-da-vovo/internal/store"
)

func squareCities() opt.Cities {
	return opt.Cities{{Name: "a"}, {Name: "b", X: 1}, {Name: "c", X: 1, Y: 1}, {Name: "d", Y: 1}}
}

func TestRunManagerShutdownCancelsRuns(t *testing.T) {
	st := store.NewMemory()
	b := NewBroker()
	m := NewRunManager(st, b, nil)
	m.DefaultBudget = time.Minute

	cfg := opt.DefaultConfig()
	cfg.PopulationSize = 8
	run, err := m.Start(context.Background(), "sq", squareCities(), cfg, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.Config.TimeBudgetMs != time.Minute.Milliseconds() {
		t.Fatalf("default budget not applied: %+v", run.Config)
	}
	ch := b.Subscribe(run.ID)
	defer b.Unsubscribe(run.ID, ch)
	if _, _, active, ok := m.Snapshot(run.ID); !ok || !active {
		t.Fatalf("snapshot should report an active run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	got, _ := st.GetRun(context.Background(), run.ID)
	if got.Status != model.RunCancelled || got.FinishedAt == nil {
		t.Fatalf("after shutdown: %+v", got)
	}
	if _, stats, active, ok := m.Snapshot(run.ID); !ok || active || stats.Size != 8 {
		t.Fatalf("final snapshot: active=%v ok=%v stats=%+v", active, ok, stats)
	}
	if m.Active() != 0 {
		t.Fatalf("active runs left: %d", m.Active())
	}

	var last Event
	for evt := range drain(ch) {
		last = evt
	}
	if last.Type != model.EventRunFinished {
		t.Fatalf("last event %q", last.Type)
	}

	if _, err := m.Start(context.Background(), "late", squareCities(), cfg, 0); !errors.Is(err, errShuttingDown) {
		t.Fatalf("start after shutdown: %v", err)
	}
	if err := m.Cancel(run.ID); !errors.Is(err, ErrRunNotActive) {
		t.Fatalf("cancel finished run: %v", err)
	}
}

func TestRunManagerRejectsBadConfig(t *testing.T) {
	m := NewRunManager(store.NewMemory(), NewBroker(), nil)
	cfg := opt.DefaultConfig()
	cfg.Operators = []string{"nope"}
	cfg.MaxIterations = 1
	if _, err := m.Start(context.Background(), "", squareCities(), cfg, 0); err == nil {
		t.Fatal("expected an unknown operator error")
	}
	if m.Active() != 0 {
		t.Fatalf("slot leaked: %d", m.Active())
	}
}

// drain returns buffered events without blocking.
func drain(ch chan Event) chan Event {
	out := make(chan Event, cap(ch)+1)
	for {
		select {
		case evt := <-ch:
			out <- evt
		default:
			close(out)
			return out
		}
	}
}

func TestRunManagerEvictsOldFinishedRuns(t *testing.T) {
	m := NewRunManager(store.NewMemory(), NewBroker(), nil)
	m.KeepFinished = 1
	cfg := opt.DefaultConfig()
	cfg.PopulationSize = 4
	cfg.MaxIterations = 3

	var ids []string
	for i := 0; i < 2; i++ {
		run, err := m.Start(context.Background(), "", squareCities(), cfg, 0)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		ids = append(ids, run.ID)
		deadline := time.Now().Add(5 * time.Second)
		for {
			if _, _, active, ok := m.Snapshot(run.ID); ok && !active {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("run %d did not finish", i)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	if _, _, _, ok := m.Snapshot(ids[0]); ok {
		t.Fatal("oldest run should be evicted")
	}
	if _, ok := opt.GetMetrics(ids[0]); ok {
		t.Fatal("metrics of evicted run should be dropped")
	}
	if _, ok := opt.GetMetrics(ids[1]); !ok {
		t.Fatal("metrics of kept run missing")
	}
}
