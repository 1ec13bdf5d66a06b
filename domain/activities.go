package domain

import (
	"github.com/google/uuid"
	"time"
)

// Activity is one inbound activity's decision-log row: what arrived, from
// where, and how the policy pipeline ruled on it. Doubles as the
// deduplication record for redelivered activities.
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Create, Update, Like, Announce, Flag, Delete, Accept, ...
	ActorURI     string
	SourceHost   string
	Accepted     bool
	Reason       string // rejection reason, empty when accepted
	RawJSON      string
	CreatedAt    time.Time
}

// DeliveryQueueItem represents an item in the outbound delivery queue.
type DeliveryQueueItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActorURI     string // sending service actor, owns the signing key
	ActivityJSON string // the complete activity to deliver
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}
