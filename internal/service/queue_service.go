package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the reliable delivery channel between the lifecycle engine and
// the worker pool. Only claimed (already processing) analysis ids travel
// through it.
type Queue interface {
	Enqueue(ctx context.Context, analysisID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, analysisID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// ErrQueueEmpty is returned by ClaimBlocking when no id became available
// within the timeout.
var ErrQueueEmpty = errors.New("queue is empty")

// redisQueue implements a reliable queue on Redis lists.
// Enqueue: LPUSH queue
// Claim:   BRPOPLPUSH queue -> processing
// Ack:     LREM processing
// Stale entries in processing (a worker died mid-job) are moved back by
// RequeueStale; delivery is therefore at-least-once and consumers must
// tolerate duplicates.
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, analysisID string) error {
	return q.rdb.LPush(ctx, q.queueKey, analysisID).Err()
}

func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrQueueEmpty
		}
		return "", err
	}
	return id, nil
}

func (q *redisQueue) Ack(ctx context.Context, analysisID string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, analysisID).Err()
}

// RequeueStale moves up to max entries from processing back to the queue.
// It is a simple reaper for workers that crashed between claim and ack.
func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64

	for i := int64(0); i < max; i++ {
		id, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}

	return moved, nil
}
