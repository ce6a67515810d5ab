package service

import (
	"github.com/funkostack/funkostore/internal/mailer"
	"github.com/funkostack/funkostore/internal/notify"
)

// Broadcaster is the websocket fan-out surface the services depend on.
type Broadcaster interface {
	Broadcast(env notify.Envelope) int
}

// EventPublisher emits named topic events for subscription listeners.
type EventPublisher interface {
	Publish(topic string, payload interface{})
}

// MailEnqueuer pushes a message onto the asynchronous mail queue.
type MailEnqueuer interface {
	Enqueue(msg mailer.Message)
}

// TaskRunner detaches fire-and-forget side effects from the request path.
type TaskRunner interface {
	Go(name string, fn func())
}
