package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/integrations/textstream"
	"github.com/kayky-cas/romaria-da-vovo/internal/model"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

// maxRunCities bounds a single request; construction is O(n log n) per
// candidate so larger sets mostly burn CPU.
const maxRunCities = 20000

var errNoCities = errors.New("either cities or text is required")

// runInput turns a request into a validated city set and engine config.
// Text lines that fail to parse are skipped and counted, matching the CLI.
func runInput(req *model.RunRequest, defaults opt.Config) (opt.Cities, opt.Config, int, error) {
	var cities opt.Cities
	skipped := 0
	switch {
	case len(req.Cities) > 0 && req.Text != "":
		return nil, opt.Config{}, 0, errors.New("cities and text are mutually exclusive")
	case len(req.Cities) > 0:
		cities = make(opt.Cities, 0, len(req.Cities))
		for i, c := range req.Cities {
			city, err := opt.NewCity(c.Name, c.X, c.Y)
			if err != nil {
				return nil, opt.Config{}, 0, fmt.Errorf("cities[%d]: %w", i, err)
			}
			cities = append(cities, city)
		}
	case req.Text != "":
		var r textstream.Reader
		cs, err := r.Read(strings.NewReader(req.Text))
		if err != nil {
			return nil, opt.Config{}, 0, err
		}
		cities, skipped = cs, len(r.Rejected())
	default:
		return nil, opt.Config{}, 0, errNoCities
	}
	if len(cities) > maxRunCities {
		return nil, opt.Config{}, 0, fmt.Errorf("too many cities: %d > %d", len(cities), maxRunCities)
	}
	if err := cities.Validate(); err != nil {
		return nil, opt.Config{}, 0, err
	}
	cfg, err := applyRunConfig(defaults, req.Config)
	if err != nil {
		return nil, opt.Config{}, 0, err
	}
	return cities, cfg, skipped, nil
}

func applyRunConfig(cfg opt.Config, rc *model.RunConfig) (opt.Config, error) {
	if rc == nil {
		return cfg, cfg.Validate()
	}
	if rc.PopulationSize < 0 {
		return opt.Config{}, fmt.Errorf("populationSize must be > 0: %w", opt.ErrInvalidPopulation)
	}
	if rc.MaxIterations < 0 || rc.StallIterations < 0 || rc.TimeBudgetMs < 0 {
		return opt.Config{}, errors.New("budgets must be >= 0")
	}
	if rc.PopulationSize > 0 {
		cfg.PopulationSize = rc.PopulationSize
	}
	if len(rc.Operators) > 0 {
		cfg.Operators = append([]string(nil), rc.Operators...)
	}
	if rc.HalfOrder != "" {
		h, err := opt.ParseHalfOrder(rc.HalfOrder)
		if err != nil {
			return opt.Config{}, err
		}
		cfg.HalfOrder = h
	}
	if rc.Seed != 0 {
		cfg.Seed = rc.Seed
	}
	if rc.MaxIterations > 0 {
		cfg.MaxIterations = rc.MaxIterations
	}
	if rc.TimeBudgetMs > 0 {
		cfg.TimeBudget = time.Duration(rc.TimeBudgetMs) * time.Millisecond
	}
	if rc.StallIterations > 0 {
		cfg.StallIterations = rc.StallIterations
	}
	if rc.Parallel {
		cfg.Parallel = true
	}
	return cfg, cfg.Validate()
}

// runConfigOf renders cfg for API responses.
func runConfigOf(cfg opt.Config) model.RunConfig {
	return model.RunConfig{
		PopulationSize:  cfg.PopulationSize,
		Operators:       append([]string(nil), cfg.Operators...),
		HalfOrder:       cfg.HalfOrder.String(),
		Seed:            cfg.Seed,
		MaxIterations:   cfg.MaxIterations,
		TimeBudgetMs:    cfg.TimeBudget.Milliseconds(),
		StallIterations: cfg.StallIterations,
		Parallel:        cfg.Parallel,
	}
}

func validateSubscription(req *model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return errors.New("events must not be empty")
	}
	for _, e := range req.Events {
		switch e {
		case model.EventRunImproved, model.EventRunFinished, "*":
		default:
			return fmt.Errorf("unknown event type: %s", e)
		}
	}
	return nil
}
