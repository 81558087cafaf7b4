package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is a handle on one client bound to one actor channel. Close
// is deterministic: after it returns no message will be delivered.
type Subscription struct {
	hub    *Hub
	client *Client
	once   sync.Once
}

func (hub *Hub) Subscribe(actorID uuid.UUID, buffer int) *Subscription {
	c := hub.NewClient(actorID, buffer)
	hub.AddChannel(c, actorID.String())
	return &Subscription{hub: hub, client: c}
}

func (s *Subscription) C() <-chan Message { return s.client.Outbound }

func (s *Subscription) ClientID() uuid.UUID { return s.client.ID }

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.CloseClient(s.client) })
}
