package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/keys"
)

// não sobrescreve o que o book-processor já gravou
var fillIfMissing = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'payload', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// GetBook lê o snapshot corrente gravado pelo book-processor
func (c *Cache) GetBook(ctx context.Context, marketID, selectionID uint64) (events.BookSnapshot, bool, error) {
	var e events.BookSnapshot
	b, err := c.R.HGet(ctx, keys.BookCurrent(marketID, selectionID), "payload").Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	return e, true, json.Unmarshal(b, &e)
}

// FillBook popula o cache a partir do banco quando a chave não existe
func (c *Cache) FillBook(ctx context.Context, e events.BookSnapshot, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return fillIfMissing.Run(ctx, c.R,
		[]string{keys.BookCurrent(e.MarketID, e.SelectionID)},
		e.Version, b, ttl.Milliseconds(),
	).Err()
}
