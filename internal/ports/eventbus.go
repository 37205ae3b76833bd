// Package ports define the EventBus interface for event-driven communication.
// The event bus replaces the arbiter's ad-hoc listener list and decouples it from its collaborators.
package ports

import (
	"github.com/tejashwikalptaru/orchestra/internal/domain"
)

// EventBus is the interface for publishing and subscribing to events.
//
// The arbiter publishes exactly one SongChangedEvent per decision; chat echo, status bar,
// IPC and metrics subscribe without knowing about each other.
//
// Handlers are invoked synchronously in registration order. Unsubscribing a handler
// must not reorder the remaining ones.
//
// Thread-safety: Implementations must be thread-safe as events may be published and
// subscribed from multiple goroutines simultaneously.
//
// Example usage:
//
//	subID := bus.Subscribe(domain.EventSongChanged, func(event domain.Event) {
//	    e := event.(domain.SongChangedEvent)
//	    statusBar.Update(e.New, e.PlayedByOverride)
//	})
//	defer bus.Unsubscribe(subID)
type EventBus interface {
	// Publish publishes an event to all subscribers of that event type.
	// This method must not block for long periods.
	Publish(event domain.Event)

	// Subscribe registers a handler for events of the specified type.
	// Each subscription gets a unique SubscriptionID.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a previously registered event handler.
	// If the subscription ID is invalid or already unsubscribed, this is a no-op.
	Unsubscribe(id domain.SubscriptionID)

	// SubscribeAll registers a handler that receives all events regardless of type.
	// This is useful for logging and metrics.
	SubscribeAll(handler domain.EventHandler) domain.SubscriptionID

	// HasSubscribers returns true if there are any active subscriptions for the given event type.
	HasSubscribers(eventType domain.EventType) bool

	// Close shuts down the event bus and cleans up resources.
	Close() error
}
