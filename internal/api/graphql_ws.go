package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kayky-cas/romaria-da-vovo/internal/model"
)

// Minimal GraphQL over WebSocket (graphql-transport-ws like) to stream run
// improvements:
//
//	subscription($runId: ID!) { runImprovements(runId: $runId) }

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQLWSHandler handles /graphql/ws
func (s *Server) GraphQLWSHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.getPrincipal(r); !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token", r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// gorilla connections allow one concurrent writer
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	fail := func(id, msg string) {
		b, _ := json.Marshal([]map[string]string{{"message": msg}})
		_ = write(wsMessage{Type: "error", ID: id, Payload: b})
	}

	type sub struct {
		runID string
		ch    chan Event
	}
	var smu sync.Mutex
	subs := map[string]sub{}
	done := make(chan struct{})
	defer close(done)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if !strings.Contains(pl.Query, "runImprovements") {
				fail(msg.ID, "unsupported subscription; expected runImprovements")
				continue
			}
			rid, _ := pl.Variables["runId"].(string)
			if rid == "" {
				fail(msg.ID, "runId required")
				continue
			}
			smu.Lock()
			if _, dup := subs[msg.ID]; dup {
				smu.Unlock()
				fail(msg.ID, "subscriber for "+msg.ID+" already exists")
				continue
			}
			// subscribe before reading the run so a finish in between is not lost
			ch := s.Broker.Subscribe(rid)
			run, err := s.Store.GetRun(r.Context(), rid)
			if err != nil {
				smu.Unlock()
				s.Broker.Unsubscribe(rid, ch)
				fail(msg.ID, "run not found")
				continue
			}
			subs[msg.ID] = sub{runID: rid, ch: ch}
			smu.Unlock()
			go func(id string, c chan Event) {
				for evt := range c {
					payload, _ := json.Marshal(map[string]any{"data": map[string]any{
						"runImprovements": map[string]any{"type": evt.Type, "data": evt.Data},
					}})
					if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
						return
					}
					if evt.Type == model.EventRunFinished {
						break
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
			if run.Status != model.RunRunning {
				// already over; report the outcome and close
				ch <- finishedEvent(run)
			}
		case "complete":
			smu.Lock()
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.runID, s0.ch)
				delete(subs, msg.ID)
			}
			smu.Unlock()
		default:
			// ignore
		}
	}
	smu.Lock()
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.runID, s0.ch)
		delete(subs, id)
	}
	smu.Unlock()
}
