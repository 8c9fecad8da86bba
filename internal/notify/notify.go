// Package notify carries the "table changed" signal between writers and
// anyone showing availability to operators. The transport is a redis pub/sub
// channel; consumers only learn that a row changed and re-resolve candidates
// themselves.
package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
)

const ChannelChanges = "vendra:changes"

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"

	TableInventory = "inventory"
	TableOrders    = "orders"
	TableCatalog   = "catalog"
)

type Event struct {
	Table  string `json:"table"`
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

// TableChanged publishes a change event. Delivery is best-effort: a missed
// signal only delays a cache refresh, it never corrupts state.
func (p *Publisher) TableChanged(ctx context.Context, table string, id int64, action string) {
	payload, err := json.Marshal(Event{Table: table, ID: id, Action: action})
	if err != nil {
		return
	}
	_ = p.redis.Publish(ctx, ChannelChanges, payload).Err()
}

type Subscriber struct {
	redis   *redis.Client
	handler func(Event)
}

func NewSubscriber(redisClient *redis.Client, handler func(Event)) *Subscriber {
	return &Subscriber{redis: redisClient, handler: handler}
}

// Run blocks consuming change events until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, ChannelChanges)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("notify: dropping malformed change event: %v", err)
				continue
			}
			s.handler(ev)
		}
	}
}
