package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/policy"
	"github.com/deemkeen/smilodon/relay"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HandleInbox takes one federated activity, runs it through the policy
// pipeline and records the decision. Signature verification happens in the
// fronting proxy; by the time a request reaches this handler the sender is
// whoever the actor field claims.
//
// The response is always 202 once the body parses. Senders learn nothing
// about local moderation, and a rejected activity must not look like a
// transport failure the sender should retry.
func HandleInbox(c *gin.Context, deps *Deps) {
	body, err := c.GetRawData()
	if err != nil {
		log.Printf("Inbox: failed to read body: %v", err)
		c.Status(400)
		return
	}

	var doc policy.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Printf("Inbox: failed to parse activity: %v", err)
		c.Status(400)
		return
	}

	activityURI := doc.Id()
	if activityURI == "" {
		// Nothing to deduplicate on, drop without a decision row
		log.Printf("Inbox: dropping %s activity without id", doc.Type())
		c.Status(202)
		return
	}

	// A redelivery of something already decided gets the same 202 and no
	// second decision row.
	err, existing := deps.Store.ReadActivityByURI(activityURI)
	if existing != nil {
		c.Status(202)
		return
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		// Fail open: a broken dedup lookup must not bounce federation traffic
		log.Printf("Inbox: dedup lookup for %s failed: %v", activityURI, err)
	}

	sourceHost := policy.HostOf(doc)
	_, rejection := deps.Pipeline.Apply(doc)

	record := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  activityURI,
		ActivityType: doc.Type(),
		ActorURI:     doc.Actor(),
		SourceHost:   sourceHost,
		Accepted:     rejection == nil,
		RawJSON:      string(body),
		CreatedAt:    time.Now(),
	}
	if rejection != nil {
		record.Reason = fmt.Sprintf("%s: %s", rejection.Filter, rejection.Reason)
		log.Printf("Inbox: rejected %s from %s (%s)", record.ActivityType, sourceHost, record.Reason)
	}

	if err := deps.Store.CreateActivity(record); err != nil {
		log.Printf("Inbox: could not record decision for %s: %v", activityURI, err)
	}

	if rejection == nil {
		dispatchRelayReply(doc, deps)
	}

	c.Status(202)
}

// dispatchRelayReply advances the relay handshake when the accepted activity
// is an Accept or Reject answering one of our Follow requests. The reply is
// correlated by the Follow activity id carried in the object field.
func dispatchRelayReply(doc policy.Document, deps *Deps) {
	followId := doc.ObjectURI()
	if followId == "" {
		return
	}

	var err error
	switch doc.Type() {
	case "Accept":
		_, err = deps.Relay.HandleAccept(followId)
	case "Reject":
		_, err = deps.Relay.HandleReject(followId)
	default:
		return
	}

	if errors.Is(err, relay.ErrSubscriptionNotFound) {
		log.Printf("Inbox: %s reply does not match any follow of ours", doc.Type())
		return
	}
	if err != nil {
		log.Printf("Inbox: relay handshake update failed: %v", err)
	}
}
