package events

import "time"

// Kind identifies a committed state transition.
type Kind string

const (
	QueueJoined    Kind = "queue.joined"
	QueueMatched   Kind = "queue.matched"
	QueueCancelled Kind = "queue.cancelled"
	QueueExpired   Kind = "queue.expired"

	MatchCreated   Kind = "match.created"
	MatchConfirmed Kind = "match.confirmed"
	MatchCancelled Kind = "match.cancelled"
	MatchCompleted Kind = "match.completed"
	MatchDisputed  Kind = "match.disputed"
)

// IsMatchEvent reports whether the kind belongs to a match rather than a queue entry.
func (k Kind) IsMatchEvent() bool {
	switch k {
	case MatchCreated, MatchConfirmed, MatchCancelled, MatchCompleted, MatchDisputed:
		return true
	}
	return false
}

// Event is published after a transition has been committed.
type Event struct {
	Kind    Kind      `json:"kind" msgpack:"kind"`
	EntryID string    `json:"entry_id,omitempty" msgpack:"entry_id,omitempty"`
	MatchID string    `json:"match_id,omitempty" msgpack:"match_id,omitempty"`
	UserID  string    `json:"user_id,omitempty" msgpack:"user_id,omitempty"`
	SportID string    `json:"sport_id,omitempty" msgpack:"sport_id,omitempty"`
	Status  string    `json:"status" msgpack:"status"`
	At      time.Time `json:"at" msgpack:"at"`
}

// Keys lists the subscription keys an event is delivered to.
func (e Event) Keys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{e.EntryID, e.MatchID, e.UserID} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
