// Package config loads optimizer settings from YAML files and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

// File is the on-disk layout:
//
//	optimizer:
//	  populationSize: 100
//	  operators: [mirror-swap, cross-half-swap, move-to-end, move-to-start, full-shuffle]
//	  halfOrder: nearest-first
//	  timeBudget: 30s
type File struct {
	Optimizer opt.Config `yaml:"optimizer"`
}

// Parse overlays a YAML document on opt.DefaultConfig. Unknown keys are an
// error so typos do not silently fall back to defaults.
func Parse(data []byte) (opt.Config, error) {
	f := File{Optimizer: opt.DefaultConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return opt.Config{}, fmt.Errorf("parse optimizer config: %w", err)
	}
	if err := f.Optimizer.Validate(); err != nil {
		return opt.Config{}, fmt.Errorf("optimizer config: %w", err)
	}
	return f.Optimizer, nil
}

// Load reads and parses path. An empty path yields the defaults.
func Load(path string) (opt.Config, error) {
	if strings.TrimSpace(path) == "" {
		return opt.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opt.Config{}, err
	}
	return Parse(data)
}

// Marshal renders cfg in the File layout.
func Marshal(cfg opt.Config) ([]byte, error) {
	return yaml.Marshal(File{Optimizer: cfg})
}

// FromEnv overlays OPT_* variables on cfg. Unparsable values are ignored.
//
//	OPT_POPULATION, OPT_OPERATORS (comma separated), OPT_HALF_ORDER, OPT_SEED,
//	OPT_MAX_ITERATIONS, OPT_TIME_BUDGET (duration), OPT_STALL_ITERATIONS,
//	OPT_PARALLEL
func FromEnv(cfg opt.Config) opt.Config {
	if v, ok := envInt("OPT_POPULATION"); ok {
		cfg.PopulationSize = v
	}
	if v := os.Getenv("OPT_OPERATORS"); v != "" {
		cfg.Operators = SplitList(v)
	}
	if v := os.Getenv("OPT_HALF_ORDER"); v != "" {
		if h, err := opt.ParseHalfOrder(v); err == nil {
			cfg.HalfOrder = h
		}
	}
	if v := os.Getenv("OPT_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v, ok := envInt("OPT_MAX_ITERATIONS"); ok {
		cfg.MaxIterations = v
	}
	if v := os.Getenv("OPT_TIME_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TimeBudget = d
		}
	}
	if v, ok := envInt("OPT_STALL_ITERATIONS"); ok {
		cfg.StallIterations = v
	}
	if v := os.Getenv("OPT_PARALLEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Parallel = b
		}
	}
	return cfg
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(k string) (int, bool) {
	v := os.Getenv(k)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
