// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// ProjectCreatedEvent is published when a new project row is committed.
	ProjectCreatedEvent EventType = "project_created"
	// PackageUploadedEvent is published when a package upload completes.
	PackageUploadedEvent EventType = "package_uploaded"
	// LogEntryEvent carries a formatted log line to log subscribers.
	LogEntryEvent EventType = "log_entry"
	// StoreChangedEvent is published when the artifact directory changes
	// outside of an upload request.
	StoreChangedEvent EventType = "store_changed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
