package api

import (
	"net/http"
	"strings"

	"github.com/kayky-cas/romaria-da-vovo/internal/model"
)

// Minimal GraphQL-like HTTP handler.
// Supports queries:
// - runs: list runs (variables: status, cursor, limit)
// - run(id: $id): get run by id
// - improvements(runId: $runId): improvement history of a run
func (s *Server) GraphQLHTTPHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	if !s.requireRead(w, r) {
		return
	}
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	q := strings.ToLower(body.Query)
	str := func(k string) string { v, _ := body.Variables[k].(string); return v }
	num := func(k string, d int) int {
		if v, ok := body.Variables[k].(float64); ok {
			return int(v)
		}
		return d
	}
	switch {
	case strings.Contains(q, "improvements("):
		id := str("runId")
		if id == "" {
			writeProblem(w, 400, "Missing runId", "", r.URL.Path)
			return
		}
		items, err := s.Store.ListImprovements(r.Context(), id, num("after", 0), num("limit", 500))
		if err != nil {
			writeStoreError(w, r, "List improvements failed", err)
			return
		}
		writeJSON(w, 200, map[string]any{"data": map[string]any{"improvements": items}})
	case strings.Contains(q, "run("):
		id := str("id")
		if id == "" {
			writeProblem(w, 400, "Missing id", "", r.URL.Path)
			return
		}
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, "Get run failed", err)
			return
		}
		writeJSON(w, 200, map[string]any{"data": map[string]any{"run": run}})
	case strings.Contains(q, "runs"):
		items, next, err := s.Store.ListRuns(r.Context(), str("status"), str("cursor"), num("limit", 100))
		if err != nil {
			writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path)
			return
		}
		if items == nil {
			items = []model.Run{}
		}
		writeJSON(w, 200, map[string]any{"data": map[string]any{"runs": items, "nextCursor": next}})
	default:
		writeProblem(w, 400, "Unsupported query", "", r.URL.Path)
	}
}
