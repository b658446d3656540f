package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

// TargetAll subscribes a session to every machine.
const TargetAll = "all"

// Event is the envelope pushed to dashboard sessions.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

type subscription struct {
	all      bool
	machines map[string]struct{}
}

// Hub tracks dashboard sessions and their subscriptions and fans sensor
// updates and alerts out to the matching subset. Delivery is best effort: a
// slow session drops events instead of stalling the publisher, and each
// session observes its own events in publish order.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]*subscription
	logger   *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]*subscription),
		logger:   logger,
	}
}

// Register adds a session with no subscriptions yet.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = &subscription{machines: make(map[string]struct{})}
	h.mu.Unlock()
	h.logger.Info("ws session registered", zap.String("session_id", s.ID()))
}

// Unregister removes the session and all its subscriptions atomically.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	if ok {
		h.logger.Info("ws session removed", zap.String("session_id", s.ID()))
	}
}

// Subscribe adds a target ("all" or a machine id) to the session. Subscribing
// twice to the same target is a no-op; subscriptions are additive.
func (h *Hub) Subscribe(s *Session, target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.sessions[s]
	if !ok {
		return
	}
	if target == TargetAll {
		sub.all = true
		return
	}
	sub.machines[target] = struct{}{}
}

// Unsubscribe removes a target from the session; unknown targets are a no-op.
func (h *Hub) Unsubscribe(s *Session, target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.sessions[s]
	if !ok {
		return
	}
	if target == TargetAll {
		sub.all = false
		return
	}
	delete(sub.machines, target)
}

// PublishReading delivers a sensor update to all-machine subscribers and to
// subscribers of that reading's machine.
func (h *Hub) PublishReading(reading models.Reading) {
	h.publish(reading.MachineID, Event{Name: "sensor_data", Data: reading})
}

// PublishAlert delivers an alert the same way.
func (h *Hub) PublishAlert(alert models.AlertEvent) {
	h.publish(alert.MachineID, Event{Name: "alert", Data: alert})
}

func (h *Hub) publish(machineID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event.Name), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s, sub := range h.sessions {
		if sub.all {
			s.Send(payload)
			continue
		}
		if _, ok := sub.machines[machineID]; ok {
			s.Send(payload)
		}
	}
}
