package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// Claim outcome for an idempotency key.
type ClaimState int

const (
	// Claimed: the caller owns the key and must Complete or Release it.
	Claimed ClaimState = iota
	// InFlight: another request holds the key and has not finished.
	InFlight
	// Done: a previous request finished; the result holds its order id.
	Done
)

// Idempotency guards order creation behind client supplied keys.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency { return &Idempotency{rdb: rdb} }

// claimAttempts bounds the SetNX/Get round trips when the key keeps
// expiring in between.
const claimAttempts = 2

// Claim takes key for the caller, or reports who holds it. If the key
// keeps vanishing between SetNX and Get, the caller is told InFlight and
// should retry later.
func (i *Idempotency) Claim(ctx context.Context, key string) (ClaimState, string, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		ok, err := i.rdb.SetNX(ctx, idemKey(key), pendingMarker, TTLInFlight).Result()
		if err != nil {
			return 0, "", err
		}
		if ok {
			return Claimed, "", nil
		}

		v, err := i.rdb.Get(ctx, idemKey(key)).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SetNX and Get
			continue
		}
		if err != nil {
			return 0, "", err
		}
		if v == pendingMarker {
			return InFlight, "", nil
		}
		return Done, v, nil
	}
	return InFlight, "", nil
}

// Complete records the order created under key.
func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.rdb.Set(ctx, idemKey(key), orderID, TTLIdempotency).Err()
}

// Release frees a claimed key after a failed attempt so the client can retry.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, idemKey(key)).Err()
}
