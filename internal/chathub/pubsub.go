package chathub

import (
	"encoding/json"
	"log"

	"supportchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventSubscriber is implemented by stores that expose the Redis broadcast
// channel. Kept separate from storage.Store so tests can run the hub without
// a Redis connection.
type EventSubscriber interface {
	SubscribeEvents() *redis.PubSub
}

// StartPubSubListener subscribes to the cross-process broadcast channel and
// feeds remote message events into the hub loop. Two server processes behind
// a load balancer can then serve the two sides of one conversation; the hub
// skips events it published itself by origin id.
func (m *ManagerService) StartPubSubListener(sub EventSubscriber) {
	go func() {
		pubsub := sub.SubscribeEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var evt models.RemoteEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("Error unmarshalling broadcast event: %v", err)
				continue
			}
			m.RemoteCh <- evt
		}
	}()
}
