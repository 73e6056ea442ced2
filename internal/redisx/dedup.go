package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids per consumer service.
type Deduper struct {
	rdb     *redis.Client
	service string
}

func NewDeduper(rdb *redis.Client, service string) *Deduper {
	return &Deduper{rdb: rdb, service: service}
}

// FirstSeen marks id as processed and reports whether this call was the
// first to do so.
func (d *Deduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, dedupKey(d.service, id), "1", TTLDedup).Result()
}

// Forget clears the mark so a failed event is handled again on redelivery.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, dedupKey(d.service, id)).Err()
}
