package domain

import (
	"github.com/google/uuid"
	"time"
)

// Relay subscription handshake states. A subscription starts pending when
// the Follow goes out and leaves pending exactly once.
const (
	RelayStatusPending  = "pending"
	RelayStatusActive   = "active"
	RelayStatusRejected = "rejected"
)

// RelaySubscription tracks one Follow/Accept/Reject handshake with a relay
// actor. Correlation with async replies runs over FollowActivityId, not the
// relay URI, since a relay can be re-subscribed after a rejection. Rows are
// never deleted.
type RelaySubscription struct {
	Id               uuid.UUID
	RelayURI         string
	RelayInbox       string
	FollowActivityId string
	Status           string // pending, active, rejected
	Accepted         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
