package services

import (
	"context"
	"errors"

	"pairup_server/models"
	"pairup_server/utils"
)

// PoolService manages the candidate pools: one FIFO queue per
// (difficulty, topic) pair holding the users currently eligible for matching.
// Entries are only authoritative for membership; anyone reading one must
// re-validate it against the status directory before trusting it.
type PoolService struct {
	Redis *RedisService
}

// EnqueueUser inserts the entry into the queue of every (difficulty, topic)
// pair the user qualifies for.
func (ps *PoolService) EnqueueUser(ctx context.Context, entry models.Entry, difficulty string, topics []string) error {
	for _, topic := range topics {
		if err := ps.Redis.PushRight(ctx, utils.PoolKey(difficulty, topic), entry.Member()); err != nil {
			return err
		}
	}
	return nil
}

// PeekHead reads the earliest still-enqueued candidate of one queue without
// removing it. (nil, nil) means the queue is empty.
func (ps *PoolService) PeekHead(ctx context.Context, difficulty, topic string) (*models.Entry, error) {
	member, err := ps.Redis.PeekLeft(ctx, utils.PoolKey(difficulty, topic))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := models.ParseEntry(member)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemoveUser removes the entry from every named (difficulty, topic) queue.
// Removing an absent entry is a no-op.
func (ps *PoolService) RemoveUser(ctx context.Context, entry models.Entry, difficulty string, topics []string) error {
	for _, topic := range topics {
		if err := ps.RemoveFromTopic(ctx, entry, difficulty, topic); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromTopic removes the entry from a single queue. Used for lazy
// eviction during candidate scans.
func (ps *PoolService) RemoveFromTopic(ctx context.Context, entry models.Entry, difficulty, topic string) error {
	return ps.Redis.RemoveFromList(ctx, utils.PoolKey(difficulty, topic), entry.Member())
}

// RemoveEverywhere sweeps the entry out of every pool queue that exists.
// Fallback for clear jobs that arrive without the user's preferences.
func (ps *PoolService) RemoveEverywhere(ctx context.Context, entry models.Entry) error {
	keys, err := ps.Redis.ListKeys(ctx, utils.PoolKeyPattern)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := ps.Redis.RemoveFromList(ctx, key, entry.Member()); err != nil {
			return err
		}
	}
	return nil
}
