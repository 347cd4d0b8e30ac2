// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package streaming broadcasts step lifecycle events (create, signal,
// partial-complete, complete) to connected WebSocket clients: a
// read-only observability surface over the "last job update" hook
// spec.md §5 describes, never a control path back into the core.
// Adapted from the teacher's WebSocketServer, which streamed
// job/node/partition watch events polled from a REST client; here the
// source is an in-process Publisher fed directly by the lifecycle
// controller instead of a polling loop over an HTTP API.
package streaming

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType names the step lifecycle transitions broadcast to
// subscribers.
type EventType string

const (
	EventStepCreated         EventType = "step_created"
	EventStepSignaled        EventType = "step_signaled"
	EventStepPartialComplete EventType = "step_partial_complete"
	EventStepCompleted       EventType = "step_completed"
	EventStepSuspended       EventType = "step_suspended"
	EventStepResumed         EventType = "step_resumed"
	EventTimeLimitKill       EventType = "step_time_limit_kill"
	EventCheckpointStep      EventType = "step_checkpoint"
	EventCheckpointComp      EventType = "step_checkpoint_comp"
	EventCheckpointTaskComp  EventType = "step_checkpoint_task_comp"
)

// Event is one step lifecycle notification.
type Event struct {
	Type      EventType   `json:"type"`
	JobID     uint32      `json:"job_id"`
	StepID    uint32      `json:"step_id"`
	Detail    interface{} `json:"detail,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher fans Events out to every subscribed channel. The
// lifecycle controller holds one Publisher and calls Publish at each
// state transition; it never blocks waiting for a subscriber to drain.
type Publisher struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new buffered channel and returns it along with
// an unsubscribe function.
func (p *Publisher) Subscribe(bufferSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufferSize)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	unsubscribe := func() {
		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish fans ev out to every live subscriber. A subscriber whose
// buffer is full is skipped for this event rather than blocking the
// caller — the core must never wait on a slow dashboard.
func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Server upgrades incoming HTTP connections to WebSocket and streams
// every Event a Publisher emits to each connected client.
type Server struct {
	publisher  *Publisher
	upgrader   websocket.Upgrader
	bufferSize int
}

// NewServer creates a Server broadcasting publisher's events.
func NewServer(publisher *Publisher) *Server {
	return &Server{
		publisher:  publisher,
		bufferSize: 64,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection and streams lifecycle events
// until the client disconnects or the request context is cancelled.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("streaming: websocket upgrade error: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("streaming: websocket close error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.publisher.Subscribe(s.bufferSize)
	defer unsubscribe()

	go s.watchForClientClose(conn, cancel)

	s.stream(ctx, conn, events)
}

// watchForClientClose blocks on reads from the client solely to detect
// disconnection (this stream never accepts client-issued commands).
func (s *Server) watchForClientClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, events <-chan Event) {
	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("streaming: websocket write error: %v", err)
				return
			}
		case <-keepAlive.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("streaming: websocket ping error: %v", err)
				return
			}
		}
	}
}
