// internal/services/events.go
package services

import (
	"sync"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

// EventSink receives session events. Publish must not block.
type EventSink interface {
	Publish(evt models.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(evt models.Event)

func (f EventSinkFunc) Publish(evt models.Event) { f(evt) }

// EventBus fans events out to every registered sink.
type EventBus struct {
	mu      sync.RWMutex
	sinks   []EventSink
	metrics *utils.MetricsCollector
}

func NewEventBus(metrics *utils.MetricsCollector) *EventBus {
	return &EventBus{metrics: metrics}
}

func (b *EventBus) AddSink(sink EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sinks = append(b.sinks, sink)
}

func (b *EventBus) Publish(evt models.Event) {
	if b.metrics != nil {
		b.metrics.RecordEvent(string(evt.Type))
	}

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, sink := range sinks {
		sink.Publish(evt)
	}
}

// LogSink writes every event at debug level.
type LogSink struct {
	Logger *utils.Logger
}

func (s LogSink) Publish(evt models.Event) {
	s.Logger.Debug("session event", map[string]interface{}{
		"session_id": evt.SessionID,
		"type":       string(evt.Type),
		"data":       evt.Data,
	})
}
