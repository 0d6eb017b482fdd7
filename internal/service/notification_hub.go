package service

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

// Subscriber receives serialized events. Send must not block; returning an
// error tells the hub the subscriber is gone or saturated.
type Subscriber interface {
	Send(payload []byte) error
}

// closer is implemented by subscribers that hold a connection to release
// when the hub drops them.
type closer interface {
	Close()
}

// Hub is the process-scoped registry of push subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	logger  *zap.Logger
	metrics *MetricsService
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger, metrics *MetricsService) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[Subscriber]struct{}), logger: logger, metrics: metrics}
}

// Subscribe registers a subscriber.
func (h *Hub) Subscribe(sub Subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.SetSubscribers(n)
}

// Unsubscribe removes a subscriber. Removing an unknown subscriber is a no-op.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.SetSubscribers(n)
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast delivers event to every subscriber registered at call time.
// Subscribers whose Send fails are dropped; nothing is retried or queued.
func (h *Hub) Broadcast(event models.Event) {
	if event == nil {
		return
	}
	payload, err := json.Marshal(models.Envelope(event))
	if err != nil {
		h.logger.Error("failed to encode notification event", zap.String("type", string(event.EventType())), zap.Error(err))
		return
	}
	h.metrics.EventBroadcast(event.EventType())

	h.mu.RLock()
	snapshot := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	for _, sub := range snapshot {
		if err := sub.Send(payload); err != nil {
			h.metrics.DeliveryDropped()
			h.logger.Debug("dropping notification subscriber", zap.Error(err))
			h.Unsubscribe(sub)
			if c, ok := sub.(closer); ok {
				c.Close()
			}
		}
	}
}
