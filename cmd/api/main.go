package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kayky-cas/romaria-da-vovo/internal/api"
	"github.com/kayky-cas/romaria-da-vovo/internal/buildinfo"
	"github.com/kayky-cas/romaria-da-vovo/internal/metrics"
)

func main() {
	srvDeps, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Runs
	mux.HandleFunc("/v1/runs", srvDeps.RunsHandler)
	mux.HandleFunc("/v1/runs/", srvDeps.RunByIDHandler) // includes /improvements, /events/stream
	mux.HandleFunc("/v1/optimizer/config", srvDeps.OptimizerConfigHandler)

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Admin
	mux.HandleFunc("/v1/admin/webhook-dlq", srvDeps.WebhookDLQHandler)
	mux.HandleFunc("/v1/admin/debug", srvDeps.DebugJSON)

	// GraphQL
	mux.HandleFunc("/graphql", srvDeps.GraphQLHTTPHandler)
	mux.HandleFunc("/graphql/ws", srvDeps.GraphQLWSHandler)

	// Docs
	mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)

	// Health and metrics
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.Handle("/metrics", metrics.Handler())

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(metricsMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srvDeps.Shutdown(sctx); err != nil {
			log.Printf("runs shutdown: %v", err)
		}
		close(worker.Stop)
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("API %s listening on %s", buildinfo.String(), addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}

// statusRecorder keeps Flush and Hijack reachable for SSE and WebSocket
// handlers behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := routeLabel(r.URL.Path)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// staticRoutes are the registered paths without ids.
var staticRoutes = map[string]bool{
	"/v1/runs": true, "/v1/subscriptions": true, "/v1/optimizer/config": true,
	"/v1/admin/webhook-dlq": true, "/v1/admin/debug": true,
	"/graphql": true, "/graphql/ws": true,
	"/openapi.yaml": true, "/openapi.json": true, "/docs": true,
	"/healthz": true, "/readyz": true, "/metrics": true,
}

// idRoutes lists, per id-carrying prefix, the suffixes allowed after the id.
var idRoutes = map[string][]string{
	"/v1/runs/":          {"", "/improvements", "/events/stream"},
	"/v1/subscriptions/": {""},
}

// routeLabel collapses ids and maps unknown paths to "other" so the path
// label stays bounded.
func routeLabel(p string) string {
	if staticRoutes[p] {
		return p
	}
	for prefix, suffixes := range idRoutes {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		id, suffix := rest, ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			id, suffix = rest[:i], rest[i:]
		}
		if id == "" {
			return "other"
		}
		for _, s := range suffixes {
			if s == suffix {
				return prefix + "{id}" + suffix
			}
		}
	}
	return "other"
}
