package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ariefcatur/boutique-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// setIfNewer stores the view unless the cached one carries a later
// version. KEYS[1] view hash; ARGV version, view json, ttl ms.
var setIfNewer = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'v'))
if cur and cur > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'view', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// OrderCache is a read-through cache of enriched order views. Entries are
// versioned by the order's UpdatedAt, so a reader that loaded the order
// before a status change cannot put its older view back over a newer one.
type OrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderCache(rdb *redis.Client) *OrderCache {
	return &OrderCache{rdb: rdb, ttl: TTLOrderView}
}

// Get reports ok=false on a miss.
func (c *OrderCache) Get(ctx context.Context, id string) (orders.OrderView, bool, error) {
	b, err := c.rdb.HGet(ctx, orderViewKey(id), "view").Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.OrderView{}, false, nil
	}
	if err != nil {
		return orders.OrderView{}, false, err
	}
	var v orders.OrderView
	if err := json.Unmarshal(b, &v); err != nil {
		// a corrupt entry is a miss; drop it
		_ = c.rdb.Del(ctx, orderViewKey(id)).Err()
		return orders.OrderView{}, false, nil
	}
	return v, true, nil
}

// Set stores v unless a newer version of the order is already cached.
func (c *OrderCache) Set(ctx context.Context, v orders.OrderView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	version := strconv.FormatInt(v.UpdatedAt.UnixMicro(), 10)
	return setIfNewer.Run(ctx, c.rdb, []string{orderViewKey(v.ID)},
		version, b, c.ttl.Milliseconds()).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, orderViewKey(id)).Err()
}
