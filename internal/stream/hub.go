// Package stream pushes pipeline outputs (aggregation results, pattern
// matches, anomalies) to live subscribers, in-process or over WebSocket.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the envelope published to subscribers and sent over the wire.
type Message struct {
	Type     string      `json:"type"` // "result", "subscribed", "unsubscribed", "error"
	Topic    string      `json:"topic,omitempty"`
	SubID    string      `json:"sub_id,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
	Error    string      `json:"error,omitempty"`
	SentAtMs int64       `json:"sent_at_ms,omitempty"`
}

// Subscription is one live listener on a topic.
type Subscription struct {
	ID    string
	Topic string
	ch    chan Message

	mu     sync.Mutex
	closed bool
}

// C returns the receive channel.
func (s *Subscription) C() <-chan Message { return s.ch }

// Close idempotently tears down the subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub manages topic subscriptions with bounded per-subscription buffers.
// Publishing never blocks: a full buffer drops the message for that
// subscriber only.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	nextID     uint64
	bufferSize int
}

// NewHub creates a hub; bufferSize <= 0 gets a sane default.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
	}
}

// Subscribe creates a subscription. An empty topic receives everything.
func (h *Hub) Subscribe(topic string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		ID:    fmt.Sprintf("sub-%d", h.nextID),
		Topic: topic,
		ch:    make(chan Message, h.bufferSize),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes and closes a subscription.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Publish fans a payload out to every subscription matching the topic.
func (h *Hub) Publish(topic string, payload interface{}) {
	msg := Message{
		Type:     "result",
		Topic:    topic,
		Payload:  payload,
		SentAtMs: time.Now().UnixMilli(),
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.Topic != "" && sub.Topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Slow subscriber, drop
		}
	}
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades the connection and serves subscribe/unsubscribe
// commands, forwarding published messages until the client goes away.
func (h *Hub) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		done := make(chan struct{})
		var connMu sync.Mutex // serializes writes to conn
		connSubs := make(map[string]*Subscription)

		defer func() {
			for id := range connSubs {
				h.Unsubscribe(id)
			}
		}()

		writeMsg := func(m Message) error {
			connMu.Lock()
			defer connMu.Unlock()
			return conn.WriteJSON(m)
		}

		go func() {
			defer close(done)
			for {
				var cmd Message
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				switch cmd.Type {
				case "subscribe":
					sub := h.Subscribe(cmd.Topic)
					connSubs[sub.ID] = sub
					_ = writeMsg(Message{Type: "subscribed", Topic: cmd.Topic, SubID: sub.ID})
					go func(s *Subscription) {
						for m := range s.C() {
							if err := writeMsg(m); err != nil {
								return
							}
						}
					}(sub)
				case "unsubscribe":
					if _, ok := connSubs[cmd.SubID]; ok {
						delete(connSubs, cmd.SubID)
						h.Unsubscribe(cmd.SubID)
					}
					_ = writeMsg(Message{Type: "unsubscribed", SubID: cmd.SubID})
				default:
					raw, _ := json.Marshal(cmd)
					_ = writeMsg(Message{Type: "error", Error: "unknown command: " + string(raw)})
				}
			}
		}()

		<-done
	}
}
