package events

import "context"

// Publisher receives events after the transition they describe has committed.
// Implementations must not block the caller for long.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}
