// Package api implements the HTTP run service around the tour optimizer.
package api

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kayky-cas/romaria-da-vovo/internal/auth"
	"github.com/kayky-cas/romaria-da-vovo/internal/config"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
	"github.com/kayky-cas/romaria-da-vovo/internal/store"
	"github.com/kayky-cas/romaria-da-vovo/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Runs     *RunManager
	Defaults opt.Config
	// Limiter throttles run creation; nil disables throttling.
	Limiter *rate.Limiter
}

// NewServer creates a Server from the environment. If DATABASE_URL is unset,
// uses the in-memory store; if REDIS_URL is unset, the in-process broker.
func NewServer() (*Server, error) {
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	// Broker selection
	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-process broker: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	defaults, err := config.Load(os.Getenv("OPTIMIZER_CONFIG"))
	if err != nil {
		return nil, err
	}
	defaults = config.FromEnv(defaults)
	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	pub := webhooks.NewPublisher(s)
	runs := NewRunManager(s, broker, pub)
	runs.MaxActive = envInt("MAX_ACTIVE_RUNS", 8)

	return &Server{
		Store:    s,
		Pub:      pub,
		Auth:     auth.NewVerifierFromEnv(),
		Broker:   broker,
		Runs:     runs,
		Defaults: defaults,
		Limiter:  limiterFromEnv(),
	}, nil
}

// limiterFromEnv reads RATE_RPS and RATE_BURST. RATE_RPS <= 0 disables it.
func limiterFromEnv() *rate.Limiter {
	rps := 2.0
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rps = f
		}
	}
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), envInt("RATE_BURST", 5))
}

func envInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return d
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

// Shutdown cancels active runs and waits for their final records.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Runs.Shutdown(ctx)
}
