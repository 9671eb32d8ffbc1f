package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/keys"
)

// só grava se a versão for mais nova; snapshots podem chegar fora de ordem após rebalance
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'payload', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisCache encapsula o cache do último snapshot de cada book
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// SetCurrent grava o snapshot. Retorna false quando já havia versão igual ou mais nova.
func (r *RedisCache) SetCurrent(ctx context.Context, e events.BookSnapshot) (bool, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, r.Client,
		[]string{keys.BookCurrent(e.MarketID, e.SelectionID)},
		e.Version, b, r.TTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
