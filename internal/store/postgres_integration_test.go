//go:build postgres_integration

package store

import (
	"os"
	"testing"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	run, err := p.CreateRun(t.Context(), model.Run{Status: model.RunRunning, CityCount: 4, Seed: 1})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := p.AppendImprovement(t.Context(), model.Improvement{RunID: run.ID, Seq: 1, Distance: 4, At: time.Now()}); err != nil {
		t.Fatalf("AppendImprovement: %v", err)
	}
	now := time.Now()
	run.Status, run.BestDistance, run.FinishedAt = model.RunFinished, 4, &now
	if err := p.UpdateRun(t.Context(), run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	got, err := p.GetRun(t.Context(), run.ID)
	if err != nil || got.Status != model.RunFinished || got.FinishedAt == nil {
		t.Fatalf("GetRun: %+v %v", got, err)
	}
	imps, err := p.ListImprovements(t.Context(), run.ID, 0, 10)
	if err != nil || len(imps) != 1 {
		t.Fatalf("ListImprovements: %v %v", imps, err)
	}
}
