package web

import (
	"fmt"
	"log"

	"github.com/deemkeen/smilodon/backoff"
	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/policy"
	"github.com/deemkeen/smilodon/relay"
	"github.com/deemkeen/smilodon/reputation"
	"github.com/deemkeen/smilodon/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"golang.org/x/time/rate"
)

// Store is the slice of the database the HTTP layer reads and writes.
type Store interface {
	ReadActivityByURI(uri string) (error, *domain.Activity)
	CreateActivity(activity *domain.Activity) error
	ReadRecentActivities(limit int) (error, *[]domain.Activity)
	ReadRecentRejections(limit int) (error, *[]domain.Activity)
	CountActivities() (error, int)
	CountRejectedActivities() (error, int)

	CreateInstancePolicy(policy *domain.InstancePolicy) error
	UpdateInstancePolicy(policy *domain.InstancePolicy) error
	DeleteInstancePolicy(domainName string) error
	ReadInstancePolicyByDomain(domainName string) (error, *domain.InstancePolicy)
	ReadAllInstancePolicies() (error, *[]domain.InstancePolicy)
	CountInstancePolicies() (error, int)

	CountRelaySubscriptionsByStatus(status string) (error, int)
	CountPendingDeliveries() (error, int)
}

// Deps bundles what the handlers work against. Config is read through the
// holder per request so watcher reloads apply without a restart.
type Deps struct {
	Store    Store
	Conf     *util.ConfigHolder
	Cache    *reputation.Cache
	Tracker  *backoff.Tracker
	Relay    *relay.Service
	Pipeline *policy.Pipeline
}

// Router runs the HTTP server until it fails.
func Router(deps *Deps) error {
	conf := deps.Conf.Conf()
	log.Printf("Starting HTTP server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)

	g := newRouter(deps)

	err := g.Run(fmt.Sprintf(":%d", conf.Conf.HttpPort))
	if err != nil {
		return err
	}
	return nil
}

func newRouter(deps *Deps) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter rate limit for the federation inbox: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for inbound activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB

	g.GET("/", func(c *gin.Context) {
		HandleStatus(c, deps)
	})

	g.GET("/actor", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")

		actor, err := deps.Relay.GetOrCreateRelayActor()
		if err != nil {
			log.Printf("Could not load the service actor: %v", err)
			c.JSON(500, gin.H{"error": "Service actor unavailable"})
			return
		}
		c.Render(200, render.String{Format: GetServiceActor(actor, deps.Conf.Conf().Conf.Host)})
	})

	// The service actor publishes nothing of its own
	g.GET("/outbox", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		c.Render(200, render.String{Format: `{"@context": "https://www.w3.org/ns/activitystreams", "type": "OrderedCollection", "totalItems": 0, "orderedItems": []}`})
	})

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		HandleInbox(c, deps)
	})

	// Moderation RSS feed
	g.GET("/feed/moderation", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		rss, err := GetModerationFeed(deps, feedLimit)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	// The admin API only exists when a token is configured. The middleware
	// re-reads the live config, so clearing the token afterwards locks the
	// routes without a restart.
	if deps.Conf.Conf().Conf.AdminToken != "" {
		registerAdminRoutes(g, deps)
	}

	return g
}
