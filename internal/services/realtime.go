package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/pkg/logger"
)

// Feedback event kinds
const (
	EventFeedbackCreated = "feedback.created"
	EventFeedbackStatus  = "feedback.status"
	EventFeedbackDeleted = "feedback.deleted"
	EventAIReviewRun     = "ai_review.run"
)

// FeedbackEvent is a realtime update about the feedback of one document version.
type FeedbackEvent struct {
	Kind              string         `json:"kind"`
	DocumentVersionID string         `json:"document_version_id"`
	FeedbackID        string         `json:"feedback_id,omitempty"`
	Status            string         `json:"status,omitempty"`
	Item              *feedback.Item `json:"item,omitempty"`
	RunID             uint           `json:"run_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	Origin            string         `json:"origin"`
	At                time.Time      `json:"at"`
}

// EventSink receives every event the hub delivers locally.
type EventSink interface {
	Deliver(event FeedbackEvent)
}

// EventRelay forwards locally published events to other instances.
type EventRelay interface {
	Forward(event FeedbackEvent) error
}

type subscriber struct {
	ch        chan FeedbackEvent
	versionID string
}

// RealtimeHub fans feedback events out to SSE subscribers and registered sinks.
type RealtimeHub struct {
	origin  string
	clients map[string]*subscriber
	sinks   []EventSink
	relay   EventRelay
	mu      sync.RWMutex
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{
		origin:  uuid.NewString(),
		clients: make(map[string]*subscriber),
	}
}

// Origin identifies this process in relayed events.
func (h *RealtimeHub) Origin() string { return h.origin }

// Subscribe registers a client. An empty versionID receives every event.
func (h *RealtimeHub) Subscribe(clientID, versionID string) <-chan FeedbackEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan FeedbackEvent, 100)
	h.clients[clientID] = &subscriber{ch: ch, versionID: versionID}
	return ch
}

func (h *RealtimeHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.clients[clientID]; ok {
		close(sub.ch)
		delete(h.clients, clientID)
	}
}

// AddSink registers a sink such as the websocket hub.
func (h *RealtimeHub) AddSink(sink EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// SetRelay installs the cross-instance relay. Nil disables relaying.
func (h *RealtimeHub) SetRelay(relay EventRelay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = relay
}

// Publish stamps the event, delivers it locally and forwards it to the relay.
func (h *RealtimeHub) Publish(event FeedbackEvent) {
	event.Origin = h.origin
	if event.At.IsZero() {
		event.At = time.Now()
	}
	h.Deliver(event)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(event); err != nil {
			logger.Warnf("[Realtime] relay forward of %s failed: %v", event.Kind, err)
		}
	}
}

// Deliver hands the event to local subscribers and sinks without relaying it.
func (h *RealtimeHub) Deliver(event FeedbackEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.clients {
		if sub.versionID != "" && sub.versionID != event.DocumentVersionID {
			continue
		}
		// drop the event for slow clients
		select {
		case sub.ch <- event:
		default:
		}
	}
	for _, sink := range h.sinks {
		sink.Deliver(event)
	}
}

func (h *RealtimeHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var globalRealtimeHub *RealtimeHub
var realtimeHubOnce sync.Once

// GetRealtimeHub returns the process-wide hub.
func GetRealtimeHub() *RealtimeHub {
	realtimeHubOnce.Do(func() {
		globalRealtimeHub = NewRealtimeHub()
	})
	return globalRealtimeHub
}
