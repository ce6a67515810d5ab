// Package events wraps the in-process event bus that feeds GraphQL
// subscription listeners.
package events

import (
	"github.com/asaskevich/EventBus"
)

// Subscription topics. The names are part of the public GraphQL surface.
const (
	TopicFunkoCreated = "onFunkoCreado"
	TopicFunkoUpdated = "onFunkoActualizado"
	TopicFunkoDeleted = "onFunkoEliminado"

	TopicCategoryCreated = "onCategoriaCreada"
	TopicCategoryUpdated = "onCategoriaActualizada"
	TopicCategoryDeleted = "onCategoriaEliminada"
)

// Publisher is a thin facade over EventBus so that services depend on a
// narrow publish surface and listeners on a narrow subscribe surface.
type Publisher struct {
	bus EventBus.Bus
}

func NewPublisher() *Publisher {
	return &Publisher{bus: EventBus.New()}
}

// Publish emits a topic event asynchronously; listener failures never
// propagate to the caller.
func (p *Publisher) Publish(topic string, payload interface{}) {
	p.bus.Publish(topic, payload)
}

func (p *Publisher) Subscribe(topic string, fn interface{}) error {
	return p.bus.Subscribe(topic, fn)
}

func (p *Publisher) Unsubscribe(topic string, fn interface{}) error {
	return p.bus.Unsubscribe(topic, fn)
}
