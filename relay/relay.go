package relay

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/policy"
	"github.com/deemkeen/smilodon/util"
	"github.com/google/uuid"
)

// ErrSubscriptionNotFound is returned when an Accept or Reject arrives for a
// Follow this server is not tracking. Late and duplicate replies are normal
// under store-and-forward federation, so callers treat this as a non-fatal
// outcome, not a failure.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// actorUsername is the service actor the relay handshakes run under.
const actorUsername = "relay"

// Store is the persistence surface the relay service needs.
type Store interface {
	ReadServiceActorByUsername(username string) (error, *domain.ServiceActor)
	CreateServiceActor(username string, actorURI string) (error, *domain.ServiceActor)
	CreateRelaySubscription(sub *domain.RelaySubscription) error
	ReadRelaySubscriptionByFollowId(followId string) (error, *domain.RelaySubscription)
	ReadRelaySubscriptionByRelayURI(relayURI string) (error, *domain.RelaySubscription)
	ReadAllRelaySubscriptions() (error, *[]domain.RelaySubscription)
	ReadRelaySubscriptionsByStatus(status string) (error, *[]domain.RelaySubscription)
	UpdateRelaySubscriptionStatus(id uuid.UUID, status string, accepted bool) error
	EnqueueDelivery(item *domain.DeliveryQueueItem) error
}

// Resolver looks up the inbox endpoint of a remote actor document.
type Resolver interface {
	ResolveInbox(actorURI string) (string, error)
}

// Service manages this server's subscriptions to third-party relays: the
// outbound Follow, the async Accept/Reject correlation, and the fan-out of
// public activities to active relays.
type Service struct {
	store    Store
	conf     *util.ConfigHolder
	resolver Resolver
	pipeline *policy.Pipeline
}

func NewService(store Store, conf *util.ConfigHolder, resolver Resolver, pipeline *policy.Pipeline) *Service {
	return &Service{
		store:    store,
		conf:     conf,
		resolver: resolver,
		pipeline: pipeline,
	}
}

// GetOrCreateRelayActor returns the service actor used for relay handshakes,
// creating it with a fresh keypair on first use.
func (s *Service) GetOrCreateRelayActor() (*domain.ServiceActor, error) {
	err, actor := s.store.ReadServiceActorByUsername(actorUsername)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading relay actor: %w", err)
	}

	actorURI := fmt.Sprintf("https://%s/actor", s.conf.Conf().Conf.Host)
	err, actor = s.store.CreateServiceActor(actorUsername, actorURI)
	if err != nil {
		return nil, fmt.Errorf("creating relay actor: %w", err)
	}
	log.Printf("Created relay service actor %s", actorURI)
	return actor, nil
}

// Subscribe sends a Follow to a relay and records the handshake as pending.
// Subscribing again while pending or active returns the existing
// subscription without sending anything; after a rejection a fresh handshake
// starts under a new Follow id, keeping the rejected row as history.
func (s *Service) Subscribe(relayURI string) (*domain.RelaySubscription, error) {
	err, existing := s.store.ReadRelaySubscriptionByRelayURI(relayURI)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil && existing.Status != domain.RelayStatusRejected {
		return existing, nil
	}

	inbox, err := s.resolver.ResolveInbox(relayURI)
	if err != nil {
		return nil, fmt.Errorf("resolving relay inbox: %w", err)
	}

	actor, err := s.GetOrCreateRelayActor()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	followId := fmt.Sprintf("https://%s/activities/%s", s.conf.Conf().Conf.Host, uuid.New())
	follow := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       followId,
		"type":     "Follow",
		"actor":    actor.ActorURI,
		"object":   relayURI,
		"to":       []interface{}{relayURI},
	}
	payload, err := json.Marshal(follow)
	if err != nil {
		return nil, err
	}

	// Queue the Follow before recording the handshake. If recording fails
	// the reply hits "subscription not found", which is harmless, while the
	// reverse order could leave a pending row that never went out.
	if err := s.store.EnqueueDelivery(&domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     inbox,
		ActorURI:     actor.ActorURI,
		ActivityJSON: string(payload),
		Attempts:     0,
		NextRetryAt:  now,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}

	sub := &domain.RelaySubscription{
		Id:               uuid.New(),
		RelayURI:         relayURI,
		RelayInbox:       inbox,
		FollowActivityId: followId,
		Status:           domain.RelayStatusPending,
		Accepted:         false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateRelaySubscription(sub); err != nil {
		return nil, err
	}

	log.Printf("Subscribing to relay %s (follow %s)", relayURI, followId)
	return sub, nil
}

// HandleAccept transitions the handshake correlated by the Follow id from
// pending to active.
func (s *Service) HandleAccept(followId string) (*domain.RelaySubscription, error) {
	return s.transition(followId, domain.RelayStatusActive, true)
}

// HandleReject transitions the handshake correlated by the Follow id from
// pending to rejected.
func (s *Service) HandleReject(followId string) (*domain.RelaySubscription, error) {
	return s.transition(followId, domain.RelayStatusRejected, false)
}

// transition applies a state change once. Duplicate replies are a no-op as
// soon as the subscription has left pending.
func (s *Service) transition(followId string, status string, accepted bool) (*domain.RelaySubscription, error) {
	err, sub := s.store.ReadRelaySubscriptionByFollowId(followId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}

	if sub.Status != domain.RelayStatusPending {
		return sub, nil
	}

	if err := s.store.UpdateRelaySubscriptionStatus(sub.Id, status, accepted); err != nil {
		return nil, err
	}
	sub.Status = status
	sub.Accepted = accepted
	sub.UpdatedAt = time.Now()
	log.Printf("Relay subscription %s is now %s", sub.RelayURI, status)
	return sub, nil
}

// ListSubscriptions returns every handshake ever recorded, newest first.
func (s *Service) ListSubscriptions() ([]domain.RelaySubscription, error) {
	err, subs := s.store.ReadAllRelaySubscriptions()
	if err != nil {
		return nil, err
	}
	return *subs, nil
}

// ListActiveSubscriptions returns the relays eligible for fan-out.
func (s *Service) ListActiveSubscriptions() ([]domain.RelaySubscription, error) {
	err, subs := s.store.ReadRelaySubscriptionsByStatus(domain.RelayStatusActive)
	if err != nil {
		return nil, err
	}
	return *subs, nil
}

// GetSubscription returns the newest handshake for a relay URI.
func (s *Service) GetSubscription(relayURI string) (*domain.RelaySubscription, error) {
	err, sub := s.store.ReadRelaySubscriptionByRelayURI(relayURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// PublishToRelays queues a public Create for every active relay. Any other
// activity is a no-op, not an error. The document passes through the same
// moderation pipeline applied inbound, so nothing this server would reject
// is fanned out, and transforms apply to the relayed copy.
func (s *Service) PublishToRelays(doc policy.Document) error {
	if doc.Type() != "Create" || !doc.IsPublic() {
		return nil
	}

	filtered, rejection := s.pipeline.Apply(doc)
	if rejection != nil {
		log.Printf("Not relaying %s: %s", doc.Id(), rejection.Reason)
		return nil
	}

	subs, err := s.ListActiveSubscriptions()
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	actor, err := s.GetOrCreateRelayActor()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(filtered)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, sub := range subs {
		item := &domain.DeliveryQueueItem{
			Id:           uuid.New(),
			InboxURI:     sub.RelayInbox,
			ActorURI:     actor.ActorURI,
			ActivityJSON: string(payload),
			Attempts:     0,
			NextRetryAt:  now,
			CreatedAt:    now,
		}
		if err := s.store.EnqueueDelivery(item); err != nil {
			log.Printf("Failed to queue relay delivery to %s: %v", sub.RelayInbox, err)
		}
	}
	return nil
}
