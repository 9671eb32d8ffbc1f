package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/keys"
)

type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = keys.BroadcastChannel
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// PublishSnapshot envelopa o snapshot para o WS do book-feed
func (b *RedisBroadcaster) PublishSnapshot(ctx context.Context, e events.BookSnapshot) error {
	msg, err := json.Marshal(WSUpdate{Book: keys.Book(e.MarketID, e.SelectionID), Payload: e})
	if err != nil {
		return err
	}
	return b.Publish(ctx, msg)
}

// Payload padrão para o WS do book-feed
type WSUpdate struct {
	Book    string              `json:"book"` // "market:selection"
	Payload events.BookSnapshot `json:"payload"`
}
