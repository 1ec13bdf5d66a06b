package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// ServiceActor is a local non-user actor (the relay subscriber) with its
// signing keypair. Created lazily on first use.
type ServiceActor struct {
	Id            uuid.UUID
	Username      string
	ActorURI      string
	PublicKeyPem  string
	PrivateKeyPem string
	CreatedAt     time.Time
}

func (a *ServiceActor) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tActorURI: %s \n\tCreatedAt: %s)", a.Id, a.Username, a.ActorURI, a.CreatedAt)
}
