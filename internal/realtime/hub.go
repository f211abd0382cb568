// Package realtime streams event changes to WebSocket subscribers. Every
// subscriber receives only the events its actor snapshot may view, redacted the
// same way the REST API redacts them.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/events"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/telemetry"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Change is one event change as carried over Redis.
type Change struct {
	Kind  string        `json:"kind"`
	Event *models.Event `json:"event"`
}

// ChangePublisher fans a change out to every instance, this one included.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ch Change) error
}

// ChangeSubscriber delivers changes published by any instance.
type ChangeSubscriber interface {
	SubscribeChanges(ctx context.Context, handler func(Change)) error
}

// Hub maintains connected clients and broadcasts event changes to them.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     ChangePublisher
	marshal func(any) ([]byte, error)
}

// NewHub creates a hub. With a nil publisher changes are broadcast locally only.
func NewHub(logger *zap.Logger, pub ChangePublisher) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
		marshal: json.Marshal,
	}
}

// Run delivers changes from sub to local clients until ctx is done.
func (h *Hub) Run(ctx context.Context, sub ChangeSubscriber) error {
	return sub.SubscribeChanges(ctx, h.Broadcast)
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	telemetry.RealtimeClients.Inc()
	h.logger.Debug("realtime client connected", zap.String("client_id", c.ID), zap.Bool("authenticated", c.actor.Authenticated()))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		telemetry.RealtimeClients.Dec()
		h.logger.Debug("realtime client disconnected", zap.String("client_id", c.ID))
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishEventChange implements events.Publisher.
func (h *Hub) PublishEventChange(ctx context.Context, kind string, ev *models.Event) error {
	ch := Change{Kind: kind, Event: ev}
	if h.pub != nil {
		return h.pub.PublishChange(ctx, ch)
	}
	h.Broadcast(ch)
	return nil
}

type deletedPayload struct {
	ID uuid.UUID `json:"id"`
}

// Broadcast sends the change to every local client allowed to view the event.
// Each payload variant is encoded once; a variant that fails to encode is
// skipped for the clients that would receive it.
func (h *Hub) Broadcast(ch Change) {
	if ch.Event == nil {
		return
	}
	type encoded struct {
		data json.RawMessage
		err  error
	}
	cache := make(map[bool]*encoded, 2)
	encode := func(hide bool) *encoded {
		if e, ok := cache[hide]; ok {
			return e
		}
		var payload any = ch.Event
		switch {
		case ch.Kind == events.ChangeDeleted:
			payload = deletedPayload{ID: ch.Event.ID}
		case hide:
			payload = access.Redact(ch.Event)
		}
		data, err := h.marshal(payload)
		if err != nil {
			h.logger.Warn("marshal change", zap.String("event_id", ch.Event.ID.String()), zap.Error(err))
		}
		e := &encoded{data: data, err: err}
		cache[hide] = e
		return e
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if ok, _ := access.CanView(ch.Event, c.actor); !ok {
			continue
		}
		e := encode(access.HideDetails(ch.Event, c.actor))
		if e.err != nil {
			continue
		}
		select {
		case c.send <- WSMessage{Event: "event_" + ch.Kind, Data: e.data}:
		default:
			h.logger.Debug("client buffer full, dropping message", zap.String("client_id", c.ID))
		}
	}
}
