package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

// wsSubscribe is sent by clients to choose the field attached to each frame.
// An empty Field means frames carry stats only.
type wsSubscribe struct {
	Type  string `json:"type"` // "subscribe"
	Field string `json:"field"`
	Step  int    `json:"step"`
}

// wsFrame is pushed to clients after every tick.
type wsFrame struct {
	Type  string         `json:"type"` // "frame"
	Frame engine.Frame   `json:"frame"`
	Field *fieldResponse `json:"field,omitempty"`
}

type fieldRequest struct {
	kind world.FieldKind
	step int
}

// wsSession holds one client's field choice.
type wsSession struct {
	mu    sync.Mutex
	field *fieldRequest
}

func (ss *wsSession) set(f *fieldRequest) {
	ss.mu.Lock()
	ss.field = f
	ss.mu.Unlock()
}

func (ss *wsSession) get() *fieldRequest {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.field
}

func parseSubscribe(field, step string) (*fieldRequest, error) {
	if field == "" {
		return nil, nil
	}
	kind, err := world.ParseFieldKind(field)
	if err != nil {
		return nil, err
	}
	n, err := parseStep(step)
	if err != nil {
		return nil, err
	}
	return &fieldRequest{kind: kind, step: n}, nil
}

// handleWS streams a frame per tick. The initial field choice comes from the
// ?field=&step= query; clients may change it by sending a subscribe message.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	initial, err := parseSubscribe(r.URL.Query().Get("field"), r.URL.Query().Get("step"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	current := atomic.AddInt32(&s.wsConns, 1)
	if current > maxWSConns {
		atomic.AddInt32(&s.wsConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.wsConns, -1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	session := &wsSession{field: initial}
	subID, frames := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	slog.Info("stream client connected", "sub_id", subID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case f, ok := <-frames:
				if !ok {
					writeErr <- nil
					return
				}
				msg := wsFrame{Type: "frame", Frame: f}
				if req := session.get(); req != nil && f.Grid != nil {
					field := sampleField(f.Grid, req.kind, req.step, f.Tick)
					msg.Field = &field
				}
				b, err := json.Marshal(msg)
				if err != nil {
					writeErr <- err
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			case <-heartbeat.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// Reader loop: accept subscribe updates until the client goes away.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var sub wsSubscribe
		if err := json.Unmarshal(raw, &sub); err != nil || sub.Type != "subscribe" {
			continue
		}
		if sub.Step == 0 {
			sub.Step = 1
		}
		req, err := parseSubscribe(sub.Field, strconv.Itoa(sub.Step))
		if err != nil {
			continue
		}
		session.set(req)
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	// Best-effort wait for the writer to stop so it doesn't outlive conn.
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	slog.Info("stream client disconnected", "sub_id", subID)
}
