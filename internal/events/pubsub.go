package events

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/pubsub"
)

var _ Publisher = (*PubSubPublisher)(nil)

// PubSubPublisher forwards events to Pub/Sub so other services can follow
// queue and match state.
type PubSubPublisher struct {
	client pubsub.PubSubClient
}

func NewPubSubPublisher(client pubsub.PubSubClient) *PubSubPublisher {
	return &PubSubPublisher{client: client}
}

func (p *PubSubPublisher) Publish(ctx context.Context, event Event) {
	topic := pubsub.TopicQueueEvents
	if event.Kind.IsMatchEvent() {
		topic = pubsub.TopicMatchEvents
	}
	if err := p.client.SendMessage(ctx, topic, event); err != nil {
		log.Error("Failed to forward event", "error", err, "kind", event.Kind, "topic", topic)
	}
}

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		p.Publish(ctx, event)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
