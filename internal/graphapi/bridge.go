package graphapi

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/internal/events"
	"github.com/funkostack/funkostore/internal/notify"
)

var bridgeTopics = []string{
	events.TopicFunkoCreated,
	events.TopicFunkoUpdated,
	events.TopicFunkoDeleted,
	events.TopicCategoryCreated,
	events.TopicCategoryUpdated,
	events.TopicCategoryDeleted,
}

// SubscriptionBridge relays event-bus topics onto per-topic websocket
// hubs so subscription clients receive them. Owned by the application:
// started once, closed at shutdown.
type SubscriptionBridge struct {
	bus      *events.Publisher
	hubs     map[string]*notify.Hub
	handlers map[string]func(payload interface{})
}

func NewSubscriptionBridge(bus *events.Publisher) *SubscriptionBridge {
	hubs := make(map[string]*notify.Hub, len(bridgeTopics))
	for _, topic := range bridgeTopics {
		hubs[topic] = notify.NewHub("sub:" + topic)
	}
	return &SubscriptionBridge{
		bus:      bus,
		hubs:     hubs,
		handlers: make(map[string]func(payload interface{})),
	}
}

// Start subscribes the bridge to every topic.
func (b *SubscriptionBridge) Start() error {
	for _, topic := range bridgeTopics {
		topic := topic
		handler := func(payload interface{}) {
			b.relay(topic, payload)
		}
		if err := b.bus.Subscribe(topic, handler); err != nil {
			return errors.Wrapf(err, "subscribe %s", topic)
		}
		b.handlers[topic] = handler
	}
	return nil
}

func (b *SubscriptionBridge) relay(topic string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"topic":     topic,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		zap.L().Error("subscription relay marshal failed",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	b.hubs[topic].BroadcastRaw(data)
}

// Hub returns the connection registry for a topic.
func (b *SubscriptionBridge) Hub(topic string) (*notify.Hub, error) {
	hub, ok := b.hubs[topic]
	if !ok {
		return nil, errors.Errorf("unknown subscription topic %q", topic)
	}
	return hub, nil
}

// Close unsubscribes and tears down every topic hub.
func (b *SubscriptionBridge) Close() {
	for topic, handler := range b.handlers {
		_ = b.bus.Unsubscribe(topic, handler)
	}
	for _, hub := range b.hubs {
		hub.Close()
	}
}
