package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/policy"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// registerAdminRoutes mounts the token-guarded operator API. Only called
// when an admin token is configured.
func registerAdminRoutes(g *gin.Engine, deps *Deps) {
	api := g.Group("/api/admin", TokenAuthMiddleware(deps.Conf))

	api.GET("/policies", func(c *gin.Context) {
		HandleListPolicies(c, deps)
	})
	api.POST("/policies", func(c *gin.Context) {
		HandleCreatePolicy(c, deps)
	})
	api.PUT("/policies", func(c *gin.Context) {
		HandleUpdatePolicy(c, deps)
	})
	api.DELETE("/policies", func(c *gin.Context) {
		HandleDeletePolicy(c, deps)
	})

	api.GET("/cache", func(c *gin.Context) {
		HandleCacheList(c, deps)
	})
	api.POST("/cache/clear", func(c *gin.Context) {
		HandleCacheClear(c, deps)
	})

	api.GET("/backoff", func(c *gin.Context) {
		HandleListBackoff(c, deps)
	})
	api.DELETE("/backoff", func(c *gin.Context) {
		HandleClearBackoff(c, deps)
	})

	api.GET("/relays", func(c *gin.Context) {
		HandleListRelays(c, deps)
	})
	api.POST("/relays", func(c *gin.Context) {
		HandleSubscribeRelay(c, deps)
	})
	api.POST("/relays/publish", func(c *gin.Context) {
		HandlePublish(c, deps)
	})

	api.GET("/decisions", func(c *gin.Context) {
		HandleRecentDecisions(c, deps)
	})
}

// policyRequest carries the writable fields of an instance policy. The domain
// may be a wildcard pattern ("*.example.com").
type policyRequest struct {
	Domain                   string `json:"domain"`
	Blocked                  bool   `json:"blocked"`
	MediaRemoval             bool   `json:"mediaRemoval"`
	MediaNsfw                bool   `json:"mediaNsfw"`
	FederatedTimelineRemoval bool   `json:"federatedTimelineRemoval"`
	FollowersOnly            bool   `json:"followersOnly"`
	ReportRemoval            bool   `json:"reportRemoval"`
	RejectDeletes            bool   `json:"rejectDeletes"`
	AvatarRemoval            bool   `json:"avatarRemoval"`
	BannerRemoval            bool   `json:"bannerRemoval"`
}

func (r *policyRequest) apply(p *domain.InstancePolicy) {
	p.Blocked = r.Blocked
	p.MediaRemoval = r.MediaRemoval
	p.MediaNsfw = r.MediaNsfw
	p.FederatedTimelineRemoval = r.FederatedTimelineRemoval
	p.FollowersOnly = r.FollowersOnly
	p.ReportRemoval = r.ReportRemoval
	p.RejectDeletes = r.RejectDeletes
	p.AvatarRemoval = r.AvatarRemoval
	p.BannerRemoval = r.BannerRemoval
}

type policyResponse struct {
	Domain                   string    `json:"domain"`
	Blocked                  bool      `json:"blocked"`
	MediaRemoval             bool      `json:"mediaRemoval"`
	MediaNsfw                bool      `json:"mediaNsfw"`
	FederatedTimelineRemoval bool      `json:"federatedTimelineRemoval"`
	FollowersOnly            bool      `json:"followersOnly"`
	ReportRemoval            bool      `json:"reportRemoval"`
	RejectDeletes            bool      `json:"rejectDeletes"`
	AvatarRemoval            bool      `json:"avatarRemoval"`
	BannerRemoval            bool      `json:"bannerRemoval"`
	Flags                    string    `json:"flags"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

func toPolicyResponse(p *domain.InstancePolicy) policyResponse {
	return policyResponse{
		Domain:                   p.Domain,
		Blocked:                  p.Blocked,
		MediaRemoval:             p.MediaRemoval,
		MediaNsfw:                p.MediaNsfw,
		FederatedTimelineRemoval: p.FederatedTimelineRemoval,
		FollowersOnly:            p.FollowersOnly,
		ReportRemoval:            p.ReportRemoval,
		RejectDeletes:            p.RejectDeletes,
		AvatarRemoval:            p.AvatarRemoval,
		BannerRemoval:            p.BannerRemoval,
		Flags:                    p.FlagSummary(),
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
	}
}

func HandleListPolicies(c *gin.Context, deps *Deps) {
	err, policies := deps.Store.ReadAllInstancePolicies()
	if err != nil {
		log.Printf("Admin: could not read policies: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read policies"})
		return
	}

	out := make([]policyResponse, 0, len(*policies))
	for i := range *policies {
		out = append(out, toPolicyResponse(&(*policies)[i]))
	}
	c.JSON(http.StatusOK, gin.H{"policies": out, "count": len(out)})
}

func HandleCreatePolicy(c *gin.Context, deps *Deps) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid policy payload"})
		return
	}

	domainName := domain.NormalizeHost(req.Domain)
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Domain is required"})
		return
	}

	err, existing := deps.Store.ReadInstancePolicyByDomain(domainName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("Admin: could not read policy for %s: %v", domainName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read policies"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Policy already exists"})
		return
	}

	now := time.Now()
	record := &domain.InstancePolicy{
		Id:        uuid.New(),
		Domain:    domainName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.apply(record)

	if err := deps.Store.CreateInstancePolicy(record); err != nil {
		log.Printf("Admin: could not store policy for %s: %v", domainName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not store policy"})
		return
	}

	// The cache may hold a negative entry for this domain, or for any number
	// of hosts when the new record is a wildcard.
	deps.Cache.Invalidate(domainName)

	log.Printf("Admin: created policy for %s (%s)", domainName, record.FlagSummary())
	c.JSON(http.StatusCreated, toPolicyResponse(record))
}

func HandleUpdatePolicy(c *gin.Context, deps *Deps) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid policy payload"})
		return
	}

	domainName := domain.NormalizeHost(req.Domain)
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Domain is required"})
		return
	}

	err, existing := deps.Store.ReadInstancePolicyByDomain(domainName)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No policy on file"})
		return
	}
	if err != nil {
		log.Printf("Admin: could not read policy for %s: %v", domainName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read policies"})
		return
	}

	req.apply(existing)
	existing.UpdatedAt = time.Now()

	if err := deps.Store.UpdateInstancePolicy(existing); err != nil {
		log.Printf("Admin: could not update policy for %s: %v", domainName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not store policy"})
		return
	}

	deps.Cache.Invalidate(domainName)

	log.Printf("Admin: updated policy for %s (%s)", domainName, existing.FlagSummary())
	c.JSON(http.StatusOK, toPolicyResponse(existing))
}

func HandleDeletePolicy(c *gin.Context, deps *Deps) {
	domainName := domain.NormalizeHost(c.Query("domain"))
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Domain is required"})
		return
	}

	err, _ := deps.Store.ReadInstancePolicyByDomain(domainName)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No policy on file"})
		return
	}
	if err != nil {
		log.Printf("Admin: could not read policy for %s: %v", domainName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read policies"})
		return
	}

	if err := deps.Store.DeleteInstancePolicy(domainName); err != nil {
		log.Printf("Admin: could not delete policy for %s: %v", domainName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete policy"})
		return
	}

	deps.Cache.Invalidate(domainName)

	log.Printf("Admin: deleted policy for %s", domainName)
	c.JSON(http.StatusOK, gin.H{"deleted": domainName})
}

// HandleCacheList reports which hosts currently have a cached policy lookup,
// negatives included.
func HandleCacheList(c *gin.Context, deps *Deps) {
	hosts := deps.Cache.Hosts()
	c.JSON(http.StatusOK, gin.H{"hosts": hosts, "count": len(hosts)})
}

func HandleCacheClear(c *gin.Context, deps *Deps) {
	cleared := deps.Cache.Len()
	deps.Cache.Clear()

	log.Printf("Admin: cleared %d cached policy entries", cleared)
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

type limitedHostResponse struct {
	Host             string    `json:"host"`
	Until            time.Time `json:"until"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

func HandleListBackoff(c *gin.Context, deps *Deps) {
	limited := deps.Tracker.LimitedHosts()

	out := make([]limitedHostResponse, 0, len(limited))
	for _, host := range limited {
		out = append(out, limitedHostResponse{
			Host:             host.Host,
			Until:            host.Until,
			RemainingSeconds: int(host.Remaining.Seconds()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"hosts": out, "count": len(out)})
}

func HandleClearBackoff(c *gin.Context, deps *Deps) {
	host := c.Query("host")
	if host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Host is required"})
		return
	}

	if !deps.Tracker.Clear(host) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Host is not limited"})
		return
	}

	log.Printf("Admin: cleared backoff for %s", host)
	c.JSON(http.StatusOK, gin.H{"cleared": domain.NormalizeHost(host)})
}

type subscriptionResponse struct {
	Relay     string    `json:"relay"`
	Inbox     string    `json:"inbox"`
	FollowId  string    `json:"followId"`
	Status    string    `json:"status"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toSubscriptionResponse(sub *domain.RelaySubscription) subscriptionResponse {
	return subscriptionResponse{
		Relay:     sub.RelayURI,
		Inbox:     sub.RelayInbox,
		FollowId:  sub.FollowActivityId,
		Status:    sub.Status,
		Accepted:  sub.Accepted,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

func HandleListRelays(c *gin.Context, deps *Deps) {
	subs, err := deps.Relay.ListSubscriptions()
	if err != nil {
		log.Printf("Admin: could not read subscriptions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read subscriptions"})
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, toSubscriptionResponse(&subs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"relays": out, "count": len(out)})
}

type subscribeRequest struct {
	Relay string `json:"relay"`
}

func HandleSubscribeRelay(c *gin.Context, deps *Deps) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscribe payload"})
		return
	}

	relayURI := strings.TrimSpace(req.Relay)
	if relayURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Relay URI is required"})
		return
	}

	sub, err := deps.Relay.Subscribe(relayURI)
	if err != nil {
		log.Printf("Admin: could not subscribe to %s: %v", relayURI, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not subscribe to relay"})
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(sub))
}

// HandlePublish queues a public activity for delivery to every active relay.
// The relay service applies the same pipeline used inbound, so the operator
// cannot fan out something the server itself would reject.
func HandlePublish(c *gin.Context, deps *Deps) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid activity payload"})
		return
	}

	var doc policy.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid activity payload"})
		return
	}

	if err := deps.Relay.PublishToRelays(doc); err != nil {
		log.Printf("Admin: publish failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not queue deliveries"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type decisionResponse struct {
	ActivityURI  string    `json:"activity"`
	ActivityType string    `json:"type"`
	ActorURI     string    `json:"actor"`
	SourceHost   string    `json:"host"`
	Accepted     bool      `json:"accepted"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func HandleRecentDecisions(c *gin.Context, deps *Deps) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if limit > 500 {
		limit = 500
	}

	err, activities := deps.Store.ReadRecentActivities(limit)
	if err != nil {
		log.Printf("Admin: could not read decisions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read decisions"})
		return
	}

	out := make([]decisionResponse, 0, len(*activities))
	for _, activity := range *activities {
		out = append(out, decisionResponse{
			ActivityURI:  activity.ActivityURI,
			ActivityType: activity.ActivityType,
			ActorURI:     activity.ActorURI,
			SourceHost:   activity.SourceHost,
			Accepted:     activity.Accepted,
			Reason:       activity.Reason,
			CreatedAt:    activity.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out, "count": len(out)})
}
