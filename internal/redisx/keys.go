package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:order:create:{Idempotency-Key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// order_view:{order_id} -> enriched order JSON
	KeyOrderView = "order_view:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderView   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour

	// how long a claimed idempotency key may stay "pending" before a
	// crashed request stops blocking retries
	TTLInFlight = 30 * time.Second
)

func idemKey(key string) string     { return fmt.Sprintf(KeyIdemOrderCreate, key) }
func orderViewKey(id string) string { return fmt.Sprintf(KeyOrderView, id) }
func dedupKey(service, id string) string {
	return fmt.Sprintf(KeyDedup, service, id)
}
