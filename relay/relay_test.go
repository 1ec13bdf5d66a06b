package relay

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/policy"
	"github.com/deemkeen/smilodon/util"
	"github.com/google/uuid"
)

// memStore is an in-memory Store for exercising the state machine.
type memStore struct {
	actors map[string]*domain.ServiceActor
	subs   []*domain.RelaySubscription
	queue  []*domain.DeliveryQueueItem
}

func newMemStore() *memStore {
	return &memStore{actors: make(map[string]*domain.ServiceActor)}
}

func (s *memStore) ReadServiceActorByUsername(username string) (error, *domain.ServiceActor) {
	if actor, ok := s.actors[username]; ok {
		return nil, actor
	}
	return sql.ErrNoRows, nil
}

func (s *memStore) CreateServiceActor(username string, actorURI string) (error, *domain.ServiceActor) {
	actor := &domain.ServiceActor{
		Id:            uuid.New(),
		Username:      username,
		ActorURI:      actorURI,
		PublicKeyPem:  "pub",
		PrivateKeyPem: "priv",
		CreatedAt:     time.Now(),
	}
	s.actors[username] = actor
	return nil, actor
}

func (s *memStore) CreateRelaySubscription(sub *domain.RelaySubscription) error {
	copied := *sub
	s.subs = append(s.subs, &copied)
	return nil
}

func (s *memStore) ReadRelaySubscriptionByFollowId(followId string) (error, *domain.RelaySubscription) {
	for _, sub := range s.subs {
		if sub.FollowActivityId == followId {
			copied := *sub
			return nil, &copied
		}
	}
	return sql.ErrNoRows, nil
}

func (s *memStore) ReadRelaySubscriptionByRelayURI(relayURI string) (error, *domain.RelaySubscription) {
	// Newest wins, rows are appended in creation order
	for i := len(s.subs) - 1; i >= 0; i-- {
		if s.subs[i].RelayURI == relayURI {
			copied := *s.subs[i]
			return nil, &copied
		}
	}
	return sql.ErrNoRows, nil
}

func (s *memStore) ReadAllRelaySubscriptions() (error, *[]domain.RelaySubscription) {
	var out []domain.RelaySubscription
	for i := len(s.subs) - 1; i >= 0; i-- {
		out = append(out, *s.subs[i])
	}
	return nil, &out
}

func (s *memStore) ReadRelaySubscriptionsByStatus(status string) (error, *[]domain.RelaySubscription) {
	var out []domain.RelaySubscription
	for i := len(s.subs) - 1; i >= 0; i-- {
		if s.subs[i].Status == status {
			out = append(out, *s.subs[i])
		}
	}
	return nil, &out
}

func (s *memStore) UpdateRelaySubscriptionStatus(id uuid.UUID, status string, accepted bool) error {
	for _, sub := range s.subs {
		if sub.Id == id {
			sub.Status = status
			sub.Accepted = accepted
			sub.UpdatedAt = time.Now()
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *memStore) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	copied := *item
	s.queue = append(s.queue, &copied)
	return nil
}

type stubResolver struct {
	inbox string
	err   error
	calls int
}

func (r *stubResolver) ResolveInbox(actorURI string) (string, error) {
	r.calls++
	return r.inbox, r.err
}

func newTestService(store Store, resolver Resolver, filters ...policy.Filter) *Service {
	conf := &util.AppConfig{}
	conf.Conf.Host = "mod.example"
	return NewService(store, util.NewConfigHolder(conf), resolver, policy.NewPipeline(filters...))
}

func publicCreate(content string) policy.Document {
	return policy.Document{
		"id":    "https://mod.example/activities/note-1",
		"type":  "Create",
		"actor": "https://mod.example/actor",
		"to":    []interface{}{policy.PublicAddress},
		"object": map[string]interface{}{
			"id":      "https://mod.example/notes/1",
			"type":    "Note",
			"content": content,
		},
	}
}

func TestSubscribeCreatesPendingAndQueuesFollow(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}
	service := newTestService(store, resolver)

	sub, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if sub.Status != domain.RelayStatusPending {
		t.Errorf("Expected pending status, got %s", sub.Status)
	}
	if sub.Accepted {
		t.Error("Expected accepted false for pending handshake")
	}
	if !strings.HasPrefix(sub.FollowActivityId, "https://mod.example/activities/") {
		t.Errorf("Unexpected follow id: %s", sub.FollowActivityId)
	}
	if sub.RelayInbox != "https://relay.example/inbox" {
		t.Errorf("Unexpected relay inbox: %s", sub.RelayInbox)
	}

	if len(store.queue) != 1 {
		t.Fatalf("Expected 1 queued delivery, got %d", len(store.queue))
	}
	item := store.queue[0]
	if item.InboxURI != "https://relay.example/inbox" {
		t.Errorf("Expected delivery to relay inbox, got %s", item.InboxURI)
	}
	if !strings.Contains(item.ActivityJSON, `"type":"Follow"`) {
		t.Errorf("Expected Follow activity, got %s", item.ActivityJSON)
	}
	if !strings.Contains(item.ActivityJSON, `"object":"https://relay.example/actor"`) {
		t.Errorf("Expected relay URI as Follow object, got %s", item.ActivityJSON)
	}
	if item.ActorURI != "https://mod.example/actor" {
		t.Errorf("Expected delivery signed by the relay actor, got %s", item.ActorURI)
	}
}

func TestSubscribeIdempotentWhilePendingOrActive(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}
	service := newTestService(store, resolver)

	first, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Pending: no second handshake
	second, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if second.FollowActivityId != first.FollowActivityId {
		t.Error("Expected the pending handshake returned, not a new one")
	}
	if len(store.subs) != 1 || len(store.queue) != 1 {
		t.Errorf("Expected no new row or delivery, got %d rows, %d deliveries", len(store.subs), len(store.queue))
	}
	if resolver.calls != 1 {
		t.Errorf("Expected resolver untouched on repeat subscribe, got %d calls", resolver.calls)
	}

	// Active: still no second handshake
	if _, err := service.HandleAccept(first.FollowActivityId); err != nil {
		t.Fatalf("HandleAccept failed: %v", err)
	}
	third, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if third.Status != domain.RelayStatusActive {
		t.Errorf("Expected active subscription returned, got %s", third.Status)
	}
	if len(store.subs) != 1 {
		t.Errorf("Expected a single row, got %d", len(store.subs))
	}
}

func TestSubscribeAgainAfterRejection(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}
	service := newTestService(store, resolver)

	first, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := service.HandleReject(first.FollowActivityId); err != nil {
		t.Fatalf("HandleReject failed: %v", err)
	}

	// A rejected handshake does not block a retry
	second, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if second.FollowActivityId == first.FollowActivityId {
		t.Error("Expected a fresh Follow id for the new handshake")
	}
	if len(store.subs) != 2 {
		t.Errorf("Expected rejected row kept as history, got %d rows", len(store.subs))
	}

	// The newest handshake wins lookups by relay URI
	sub, err := service.GetSubscription("https://relay.example/actor")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if sub.Status != domain.RelayStatusPending {
		t.Errorf("Expected the new pending handshake, got %s", sub.Status)
	}
}

func TestSubscribeResolverFailure(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{err: errors.New("connection refused")}
	service := newTestService(store, resolver)

	if _, err := service.Subscribe("https://relay.example/actor"); err == nil {
		t.Fatal("Expected error when the relay cannot be resolved")
	}
	if len(store.subs) != 0 || len(store.queue) != 0 {
		t.Error("Expected nothing recorded on resolver failure")
	}
}

func TestHandleAcceptTransitionsOnce(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}
	service := newTestService(store, resolver)

	sub, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	accepted, err := service.HandleAccept(sub.FollowActivityId)
	if err != nil {
		t.Fatalf("HandleAccept failed: %v", err)
	}
	if accepted.Status != domain.RelayStatusActive {
		t.Errorf("Expected pending to become active, got %s", accepted.Status)
	}
	if !accepted.Accepted {
		t.Error("Expected accepted true after Accept")
	}

	// Duplicate Accept is a no-op
	again, err := service.HandleAccept(sub.FollowActivityId)
	if err != nil {
		t.Fatalf("Duplicate HandleAccept errored: %v", err)
	}
	if again.Status != domain.RelayStatusActive || !again.Accepted {
		t.Error("Expected duplicate Accept to leave state untouched")
	}

	// A late Reject after the Accept is also a no-op
	late, err := service.HandleReject(sub.FollowActivityId)
	if err != nil {
		t.Fatalf("Late HandleReject errored: %v", err)
	}
	if late.Status != domain.RelayStatusActive {
		t.Errorf("Expected state to stay active, got %s", late.Status)
	}
}

func TestHandleRejectTransitions(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}
	service := newTestService(store, resolver)

	sub, err := service.Subscribe("https://relay.example/actor")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	rejected, err := service.HandleReject(sub.FollowActivityId)
	if err != nil {
		t.Fatalf("HandleReject failed: %v", err)
	}
	if rejected.Status != domain.RelayStatusRejected {
		t.Errorf("Expected rejected status, got %s", rejected.Status)
	}
	if rejected.Accepted {
		t.Error("Expected accepted false after Reject")
	}
}

func TestHandleReplyForUnknownFollowId(t *testing.T) {
	service := newTestService(newMemStore(), &stubResolver{})

	if _, err := service.HandleAccept("https://mod.example/activities/unknown"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
	if _, err := service.HandleReject("https://mod.example/activities/unknown"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestGetOrCreateRelayActor(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &stubResolver{})

	actor, err := service.GetOrCreateRelayActor()
	if err != nil {
		t.Fatalf("GetOrCreateRelayActor failed: %v", err)
	}
	if actor.ActorURI != "https://mod.example/actor" {
		t.Errorf("Unexpected actor URI: %s", actor.ActorURI)
	}

	again, err := service.GetOrCreateRelayActor()
	if err != nil {
		t.Fatalf("GetOrCreateRelayActor failed: %v", err)
	}
	if again.Id != actor.Id {
		t.Error("Expected the existing actor reused")
	}
	if len(store.actors) != 1 {
		t.Errorf("Expected 1 service actor, got %d", len(store.actors))
	}
}

func TestPublishToRelaysFansOutToActiveOnly(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://one.example/inbox"}
	service := newTestService(store, resolver)

	// One active, one pending, one rejected
	first, _ := service.Subscribe("https://one.example/actor")
	service.HandleAccept(first.FollowActivityId)
	resolver.inbox = "https://two.example/inbox"
	service.Subscribe("https://two.example/actor")
	resolver.inbox = "https://three.example/inbox"
	third, _ := service.Subscribe("https://three.example/actor")
	service.HandleReject(third.FollowActivityId)

	queuedBefore := len(store.queue)

	if err := service.PublishToRelays(publicCreate("hello fediverse")); err != nil {
		t.Fatalf("PublishToRelays failed: %v", err)
	}

	delta := len(store.queue) - queuedBefore
	if delta != 1 {
		t.Fatalf("Expected fan-out to the single active relay, got %d deliveries", delta)
	}
	item := store.queue[len(store.queue)-1]
	if item.InboxURI != "https://one.example/inbox" {
		t.Errorf("Expected delivery to the active relay inbox, got %s", item.InboxURI)
	}
	if !strings.Contains(item.ActivityJSON, "hello fediverse") {
		t.Errorf("Expected the note payload, got %s", item.ActivityJSON)
	}
}

func TestPublishToRelaysIgnoresNonPublicAndNonCreate(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}
	service := newTestService(store, resolver)

	sub, _ := service.Subscribe("https://relay.example/actor")
	service.HandleAccept(sub.FollowActivityId)
	queuedBefore := len(store.queue)

	private := publicCreate("just for you")
	private["to"] = []interface{}{"https://mod.example/users/friend"}
	if err := service.PublishToRelays(private); err != nil {
		t.Fatalf("PublishToRelays failed: %v", err)
	}

	like := policy.Document{
		"type":  "Like",
		"actor": "https://mod.example/actor",
		"to":    []interface{}{policy.PublicAddress},
	}
	if err := service.PublishToRelays(like); err != nil {
		t.Fatalf("PublishToRelays failed: %v", err)
	}

	if len(store.queue) != queuedBefore {
		t.Errorf("Expected no fan-out, got %d new deliveries", len(store.queue)-queuedBefore)
	}
}

func TestPublishToRelaysAppliesModeration(t *testing.T) {
	store := newMemStore()
	resolver := &stubResolver{inbox: "https://relay.example/inbox"}

	conf := &util.AppConfig{}
	conf.Moderation.Keyword.Reject = []string{"drivel"}
	conf.Moderation.Keyword.Replace = []util.ReplaceRule{{Pattern: "rude", Replacement: "kind"}}
	holder := util.NewConfigHolder(conf)

	confService := &util.AppConfig{}
	confService.Conf.Host = "mod.example"
	service := NewService(store, util.NewConfigHolder(confService), resolver,
		policy.NewPipeline(policy.NewKeywordFilter(holder)))

	sub, _ := service.Subscribe("https://relay.example/actor")
	service.HandleAccept(sub.FollowActivityId)
	queuedBefore := len(store.queue)

	// A rejected document is silently not relayed
	if err := service.PublishToRelays(publicCreate("utter drivel")); err != nil {
		t.Fatalf("PublishToRelays failed: %v", err)
	}
	if len(store.queue) != queuedBefore {
		t.Fatal("Expected rejected document not fanned out")
	}

	// Transforms apply to the relayed copy
	if err := service.PublishToRelays(publicCreate("rude words")); err != nil {
		t.Fatalf("PublishToRelays failed: %v", err)
	}
	if len(store.queue) != queuedBefore+1 {
		t.Fatalf("Expected 1 delivery, got %d", len(store.queue)-queuedBefore)
	}
	payload := store.queue[len(store.queue)-1].ActivityJSON
	if !strings.Contains(payload, "kind words") {
		t.Errorf("Expected transformed payload, got %s", payload)
	}
}
