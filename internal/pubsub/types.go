package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// Topic names a Pub/Sub topic the service publishes to.
type Topic string

const (
	TopicQueueEvents Topic = "queue-events"
	TopicMatchEvents Topic = "match-events"
	TopicSettleMatch Topic = "settle-match"
)
