package web

import (
	"fmt"
	"log"
	"strings"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/util"
	"github.com/gin-gonic/gin"
)

// GetServiceActor renders the relay service actor as an ActivityPub document.
// Remote servers dereference this URI from the keyId of our signed Follow
// requests, so the id and publicKey block must match what the delivery worker
// signs with.
func GetServiceActor(actor *domain.ServiceActor, host string) string {
	pubKey := strings.Replace(actor.PublicKeyPem, "\n", "\\n", -1)

	return fmt.Sprintf(
		`{
					"@context": [
						"https://www.w3.org/ns/activitystreams",
						"https://w3id.org/security/v1"
					],

					"id": "%s",
					"type": "Application",
					"preferredUsername": "%s",
					"name": "%s",
					"summary": "Moderating relay subscriber",
					"inbox": "https://%s/inbox",
					"outbox": "https://%s/outbox",
					"manuallyApprovesFollowers": true,
					"discoverable": false,
					"publicKey": {
						"id": "%s#main-key",
						"owner": "%s",
						"publicKeyPem": "%s"
					}
				}`,
		actor.ActorURI,
		actor.Username,
		util.GetNameAndVersion(),
		host,
		host,
		actor.ActorURI,
		actor.ActorURI,
		pubKey)
}

// statusResponse is the public landing document: enough to see that the
// server is alive and how busy moderation is, nothing an operator would mind
// exposing.
type statusResponse struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	Filters           []string `json:"filters"`
	Activities        int      `json:"activities"`
	Rejected          int      `json:"rejected"`
	Policies          int      `json:"policies"`
	ActiveRelays      int      `json:"activeRelays"`
	PendingRelays     int      `json:"pendingRelays"`
	PendingDeliveries int      `json:"pendingDeliveries"`
	CachedPolicies    int      `json:"cachedPolicies"`
	LimitedHosts      int      `json:"limitedHosts"`
}

// HandleStatus serves the public status JSON. A failed count degrades to
// zero instead of failing the whole endpoint.
func HandleStatus(c *gin.Context, deps *Deps) {
	resp := statusResponse{
		Name:       util.Name,
		Version:    util.GetVersion(),
		Filters:    deps.Pipeline.Filters(),
		Activities: countOrZero("activities", deps.Store.CountActivities),
		Rejected:   countOrZero("rejections", deps.Store.CountRejectedActivities),
		Policies:   countOrZero("policies", deps.Store.CountInstancePolicies),
		ActiveRelays: countOrZero("active relays", func() (error, int) {
			return deps.Store.CountRelaySubscriptionsByStatus(domain.RelayStatusActive)
		}),
		PendingRelays: countOrZero("pending relays", func() (error, int) {
			return deps.Store.CountRelaySubscriptionsByStatus(domain.RelayStatusPending)
		}),
		PendingDeliveries: countOrZero("pending deliveries", deps.Store.CountPendingDeliveries),
		CachedPolicies:    deps.Cache.Len(),
		LimitedHosts:      len(deps.Tracker.LimitedHosts()),
	}

	c.JSON(200, resp)
}

func countOrZero(name string, read func() (error, int)) int {
	err, n := read()
	if err != nil {
		log.Printf("Status: could not count %s: %v", name, err)
		return 0
	}
	return n
}
