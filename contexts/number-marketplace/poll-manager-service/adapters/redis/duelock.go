// Package redis backs the due-index and poll cycle lock with a real redis
// instance: a ZSET scored by next-poll epoch-ms for the index, and a plain
// `SET NX EX` key for the lock, matching how the rest of the stack reaches
// for go-redis wherever a shared cache/lock collaborator is needed.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type DueIndex struct {
	client *redis.Client
	key    string
}

func NewDueIndex(client *redis.Client, key string) *DueIndex {
	if key == "" {
		key = "number_marketplace:poll_due_index"
	}
	return &DueIndex{client: client, key: key}
}

func (d *DueIndex) ScheduleFirstPoll(ctx context.Context, activationID string, delay time.Duration) error {
	return d.Reschedule(ctx, activationID, delay)
}

func (d *DueIndex) Reschedule(ctx context.Context, activationID string, delay time.Duration) error {
	score := float64(time.Now().UTC().Add(delay).UnixMilli())
	return d.client.ZAdd(ctx, d.key, redis.Z{Score: score, Member: activationID}).Err()
}

func (d *DueIndex) FetchDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return d.client.ZRangeByScore(ctx, d.key, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.UnixMilli(), 10),
		Offset: 0,
		Count:  int64(limit),
	}).Result()
}

func (d *DueIndex) Remove(ctx context.Context, activationID string) error {
	return d.client.ZRem(ctx, d.key, activationID).Err()
}

// Lock implements the `poll_cycle_lock` single-writer gate of §4.5 with a
// redis `SET NX EX`.
type Lock struct {
	client *redis.Client
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client}
}

func (l *Lock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(key), "1", ttl).Result()
}

func (l *Lock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, lockKey(key)).Err()
}

func lockKey(key string) string { return "number_marketplace:lock:" + key }
