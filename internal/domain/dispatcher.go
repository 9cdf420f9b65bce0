package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/pkg/logger"
)

// EventHandler processes a lifecycle event.
type EventHandler func(ctx context.Context, event *LifecycleEvent) error

// EventDispatcher routes lifecycle events to registered handlers.
// Dispatch runs after the originating transaction commits; handlers must
// treat events as at-most-once and tolerate missing ones.
type EventDispatcher struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Register registers a handler for a specific event type.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch dispatches an event to all registered handlers.
// Handlers run sequentially. A failing handler is logged but does not stop
// the remaining handlers (best-effort delivery).
func (d *EventDispatcher) Dispatch(ctx context.Context, event *LifecycleEvent) error {
	d.mu.RLock()
	handlers := d.handlers[event.EventType]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("Event handler failed",
				zap.String("event_type", string(event.EventType)),
				zap.String("request_id", event.RequestID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s failed: %w", event.EventType, err)
			}
		}
	}

	return firstErr
}
