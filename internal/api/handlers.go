package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/config"
	"github.com/kayky-cas/romaria-da-vovo/internal/model"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

// RunView is the GET /v1/runs/{id} body: the stored run plus what the
// process executing it knows.
type RunView struct {
	model.Run
	Active  bool                 `json:"active"`
	Metrics *opt.Metrics         `json:"metrics,omitempty"`
	Stats   *opt.PopulationStats `json:"stats,omitempty"`
}

// RunsHandler handles POST/GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !s.requireWrite(w, r) {
			return
		}
		if s.Limiter != nil && !s.Limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "run creation is rate limited", r.URL.Path)
			return
		}
		var req model.RunRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		cities, cfg, skipped, err := runInput(&req, s.Defaults)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
			return
		}
		run, err := s.Runs.Start(r.Context(), req.Name, cities, cfg, skipped)
		switch {
		case errors.Is(err, ErrTooManyRuns):
			writeProblem(w, http.StatusTooManyRequests, "Too Many Runs", err.Error(), r.URL.Path)
			return
		case errors.Is(err, errShuttingDown):
			writeProblem(w, http.StatusServiceUnavailable, "Shutting Down", err.Error(), r.URL.Path)
			return
		case isInputError(err):
			writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
			return
		case err != nil:
			writeProblem(w, http.StatusInternalServerError, "Start run failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
	case http.MethodGet:
		if !s.requireRead(w, r) {
			return
		}
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := queryInt(r, "limit", 100)
		items, next, err := s.Store.ListRuns(r.Context(), status, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
			return
		}
		if items == nil {
			items = []model.Run{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func isInputError(err error) bool {
	return errors.Is(err, opt.ErrInvalidPopulation) || errors.Is(err, opt.ErrTooFewCities) ||
		errors.Is(err, opt.ErrUnknownOperator) || errors.Is(err, opt.ErrNoOperators) ||
		errors.Is(err, opt.ErrNonFiniteCoordinate)
}

// RunByIDHandler handles GET/DELETE /v1/runs/{id}, GET /v1/runs/{id}/improvements
// and GET /v1/runs/{id}/events/stream
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.getRun(w, r, id)
		case http.MethodDelete:
			s.cancelRun(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "improvements":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.listImprovements(w, r, id)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.streamRun(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request, id string) {
	if !s.requireRead(w, r) {
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "Get run failed", err)
		return
	}
	view := RunView{Run: run}
	if it, stats, active, ok := s.Runs.Snapshot(id); ok {
		view.Active = active
		view.Stats = &stats
		if active && it > view.Iterations {
			view.Iterations = it
		}
	}
	if m, ok := opt.GetMetrics(id); ok {
		view.Metrics = &m
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request, id string) {
	if !s.requireWrite(w, r) {
		return
	}
	if err := s.Runs.Cancel(id); err != nil {
		if _, gerr := s.Store.GetRun(r.Context(), id); gerr != nil {
			writeStoreError(w, r, "Get run failed", gerr)
			return
		}
		writeProblem(w, http.StatusConflict, "Run not active", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

func (s *Server) listImprovements(w http.ResponseWriter, r *http.Request, id string) {
	if !s.requireRead(w, r) {
		return
	}
	after := queryInt(r, "after", 0)
	limit := queryInt(r, "limit", 500)
	items, err := s.Store.ListImprovements(r.Context(), id, after, limit)
	if err != nil {
		writeStoreError(w, r, "List improvements failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// streamRun writes run.improved events as SSE until run.finished is sent or
// the client goes away.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, id string) {
	if !s.requireRead(w, r) {
		return
	}
	if _, err := s.Store.GetRun(r.Context(), id); err != nil {
		writeStoreError(w, r, "Get run failed", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	send := func(evt Event) {
		b, _ := json.Marshal(evt.Data)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", string(b))
		flusher.Flush()
	}
	heartbeat()

	// the run may have ended before the subscription existed
	if run, err := s.Store.GetRun(r.Context(), id); err == nil && run.Status != model.RunRunning {
		send(finishedEvent(run))
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			if evt.Type == model.EventRunFinished {
				return
			}
		case <-ticker.C:
			heartbeat()
		}
	}
}

func finishedEvent(run model.Run) Event {
	return Event{Type: model.EventRunFinished, Data: map[string]any{
		"runId":        run.ID,
		"status":       run.Status,
		"stopReason":   run.StopReason,
		"distance":     run.BestDistance,
		"iterations":   run.Iterations,
		"improvements": run.Improvements,
	}}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !s.requireWrite(w, r) {
			return
		}
		var req model.SubscriptionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := validateSubscription(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		if !s.requireWrite(w, r) {
			return
		}
		cursor := r.URL.Query().Get("cursor")
		limit := queryInt(r, "limit", 100)
		items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		if items == nil {
			items = []model.Subscription{}
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	if !s.requireWrite(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeStoreError(w, r, "Delete subscription failed", err)
		return
	}
	w.WriteHeader(204)
}

// OptimizerConfigHandler returns the defaults applied to new runs, as JSON
// or, with ?format=yaml, in the config file layout.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("format") == "yaml" {
		b, err := config.Marshal(s.Defaults)
		if err != nil {
			writeProblem(w, 500, "Marshal config failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(b)
		return
	}
	writeJSON(w, 200, map[string]any{
		"defaults":  runConfigOf(s.Defaults),
		"operators": opt.OperatorNames(),
		"budgetMs":  s.Runs.DefaultBudget.Milliseconds(),
	})
}

// WebhookDLQHandler lists dead-lettered webhook deliveries.
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireWrite(w, r) {
		return
	}
	items, err := s.Store.ListWebhookDLQ(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeProblem(w, 500, "List DLQ failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "ready", "activeRuns": s.Runs.Active()})
}

func queryInt(r *http.Request, key string, d int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}
