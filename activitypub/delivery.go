package activitypub

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/deemkeen/smilodon/backoff"
	"github.com/deemkeen/smilodon/domain"
	"github.com/google/uuid"
)

const (
	deliveryInterval = 10 * time.Second
	deliveryBatch    = 50
	maxAttempts      = 10
)

// retryLadder is the wait in minutes before the next attempt, indexed by
// attempts-1. Attempts beyond the ladder reuse the last rung.
var retryLadder = []int{1, 5, 15, 60, 240, 1440}

// Store is the slice of the database the delivery worker needs.
type Store interface {
	ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem)
	UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time) error
	DeleteDelivery(id uuid.UUID) error
	ReadServiceActorByURI(actorURI string) (error, *domain.ServiceActor)
}

// Worker drains the delivery queue. Each item is signed with the sending
// actor's key and POSTed to its inbox; transport failures reschedule the item
// on the retry ladder, while hosts inside a backoff window are skipped
// without burning an attempt.
type Worker struct {
	store   Store
	tracker *backoff.Tracker
	client  *http.Client
}

func NewWorker(store Store, tracker *backoff.Tracker) *Worker {
	return &Worker{
		store:   store,
		tracker: tracker,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Run processes the queue on a fixed interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Println("Starting delivery worker...")

	ticker := time.NewTicker(deliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Delivery worker stopped")
			return
		case <-ticker.C:
			w.ProcessOnce()
		}
	}
}

// ProcessOnce drains one batch of due deliveries.
func (w *Worker) ProcessOnce() {
	err, items := w.store.ReadPendingDeliveries(deliveryBatch)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to read queue: %v", err)
		return
	}

	if items == nil || len(*items) == 0 {
		return
	}

	log.Printf("DeliveryWorker: Processing %d pending deliveries", len(*items))

	for _, item := range *items {
		err := w.deliver(&item)
		if err == nil {
			log.Printf("DeliveryWorker: Successfully delivered to %s", item.InboxURI)
			w.store.DeleteDelivery(item.Id)
			continue
		}

		if errors.Is(err, backoff.ErrHostLimited) {
			// Not a delivery failure. The row stays due and is picked up
			// again once the host's window expires.
			continue
		}

		item.Attempts++
		if item.Attempts >= maxAttempts {
			log.Printf("DeliveryWorker: Giving up on delivery to %s after %d attempts", item.InboxURI, item.Attempts)
			w.store.DeleteDelivery(item.Id)
			continue
		}

		backoffMinutes := retryLadder[min(item.Attempts-1, len(retryLadder)-1)]
		item.NextRetryAt = time.Now().Add(time.Duration(backoffMinutes) * time.Minute)
		log.Printf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
			item.InboxURI, item.Attempts, backoffMinutes, err)
		w.store.UpdateDeliveryAttempt(item.Id, item.Attempts, item.NextRetryAt)
	}
}

// deliver sends a single queued activity. A refusal while the target host is
// backing off surfaces as backoff.ErrHostLimited.
func (w *Worker) deliver(item *domain.DeliveryQueueItem) error {
	err, actor := w.store.ReadServiceActorByURI(item.ActorURI)
	if err != nil {
		return fmt.Errorf("failed to load sending actor %s: %w", item.ActorURI, err)
	}

	privateKey, err := ParsePrivateKey(actor.PrivateKeyPem)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	parsed, err := url.Parse(item.InboxURI)
	if err != nil {
		return fmt.Errorf("invalid inbox URI %s: %w", item.InboxURI, err)
	}
	host := domain.NormalizeHost(parsed.Hostname())

	resp, err := w.tracker.Do(host, func() (*http.Response, error) {
		return w.post(item, actor, privateKey)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	return nil
}

// post builds, signs and sends the HTTP request for one queue item.
func (w *Worker) post(item *domain.DeliveryQueueItem, actor *domain.ServiceActor, privateKey *rsa.PrivateKey) (*http.Response, error) {
	body := []byte(item.ActivityJSON)
	hash := sha256.Sum256(body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	req, err := http.NewRequest("POST", item.InboxURI, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "smilodon/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	keyID := fmt.Sprintf("%s#main-key", actor.ActorURI)
	if err := SignRequest(req, privateKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	return w.client.Do(req)
}
