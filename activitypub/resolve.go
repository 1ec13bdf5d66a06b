package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ActorResponse is the subset of a remote ActivityPub actor document we care
// about when opening a relay handshake.
type ActorResponse struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Inbox             string      `json:"inbox"`
	PublicKey         struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// HTTPResolver discovers the inbox endpoint of a remote actor by fetching
// its actor document. It satisfies relay.Resolver.
type HTTPResolver struct {
	client *http.Client
}

func NewHTTPResolver() *HTTPResolver {
	return &HTTPResolver{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// ResolveInbox fetches the actor document at actorURI and returns its inbox URI.
func (r *HTTPResolver) ResolveInbox(actorURI string) (string, error) {
	actor, err := r.fetchActor(actorURI)
	if err != nil {
		return "", err
	}
	return actor.Inbox, nil
}

func (r *HTTPResolver) fetchActor(actorURI string) (*ActorResponse, error) {
	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "smilodon/1.0 ActivityPub")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var actor ActorResponse
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	if actor.ID == "" || actor.Inbox == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	return &actor, nil
}
