package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
optimizer:
  populationSize: 25
  halfOrder: farthest-first
  timeBudget: 1m30s
  stallIterations: 5000
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.PopulationSize != 25 || cfg.HalfOrder != opt.FarthestFirst {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.TimeBudget != 90*time.Second || cfg.StallIterations != 5000 {
		t.Fatalf("budgets not parsed: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Operators, opt.DefaultOperatorNames) {
		t.Fatalf("operators should default, got %v", cfg.Operators)
	}
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(cfg, opt.DefaultConfig()) {
		t.Fatalf("got %+v", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	if _, err := Parse([]byte("optimizer:\n  populaton: 3\n")); err == nil {
		t.Fatal("unknown key should fail")
	}
	if _, err := Parse([]byte("optimizer:\n  populationSize: 0\n")); !errors.Is(err, opt.ErrInvalidPopulation) {
		t.Fatalf("want ErrInvalidPopulation, got %v", err)
	}
	if _, err := Parse([]byte("optimizer:\n  operators: [mirror-swap, nope]\n")); !errors.Is(err, opt.ErrUnknownOperator) {
		t.Fatalf("want ErrUnknownOperator, got %v", err)
	}
	if _, err := Parse([]byte("optimizer:\n  halfOrder: diagonal\n")); err == nil {
		t.Fatal("bad half order should fail")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := opt.DefaultConfig()
	in.Operators = []string{opt.FullShuffle, opt.SegmentReverse}
	in.HalfOrder = opt.FarthestFirst
	in.TimeBudget = 2 * time.Second
	in.Parallel = true
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", in, out)
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil || cfg.PopulationSize != opt.DefaultPopulationSize {
		t.Fatalf("empty path: %+v %v", cfg, err)
	}
	p := filepath.Join(t.TempDir(), "opt.yaml")
	if err := os.WriteFile(p, []byte("optimizer:\n  seed: 42\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(p)
	if err != nil || cfg.Seed != 42 {
		t.Fatalf("file: %+v %v", cfg, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("OPT_POPULATION", "7")
	t.Setenv("OPT_OPERATORS", "full-shuffle, mirror-swap,")
	t.Setenv("OPT_HALF_ORDER", "farthest")
	t.Setenv("OPT_SEED", "99")
	t.Setenv("OPT_MAX_ITERATIONS", "bogus")
	t.Setenv("OPT_TIME_BUDGET", "5s")
	t.Setenv("OPT_PARALLEL", "true")
	cfg := FromEnv(opt.DefaultConfig())
	if cfg.PopulationSize != 7 || cfg.Seed != 99 || !cfg.Parallel || cfg.TimeBudget != 5*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.MaxIterations != 0 {
		t.Fatalf("bogus value should be ignored, got %d", cfg.MaxIterations)
	}
	if !reflect.DeepEqual(cfg.Operators, []string{"full-shuffle", "mirror-swap"}) {
		t.Fatalf("operators: %v", cfg.Operators)
	}
	if cfg.HalfOrder != opt.FarthestFirst {
		t.Fatalf("half order: %v", cfg.HalfOrder)
	}
}
