package services

import (
	"context"
	"errors"

	"pairup_server/models"
	"pairup_server/utils"
)

// LedgerService records arrival order into the matching pool. Its only job is
// the FCFS tie-break: the candidate with the lowest position has waited
// longest and wins.
type LedgerService struct {
	Redis *RedisService
}

// EnqueueUser appends the entry to the arrival ledger.
func (ls *LedgerService) EnqueueUser(ctx context.Context, entry models.Entry) error {
	return ls.Redis.PushRight(ctx, utils.ArrivalLedgerKey, entry.Member())
}

// GetPosition returns the entry's zero-based rank. The second return is false
// when the entry is not present; "already removed" and "never present" are
// deliberately indistinguishable.
func (ls *LedgerService) GetPosition(ctx context.Context, entry models.Entry) (int64, bool, error) {
	pos, err := ls.Redis.PositionInList(ctx, utils.ArrivalLedgerKey, entry.Member())
	if errors.Is(err, ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

// RemoveUser removes the entry from the ledger. Removing an absent entry is a
// no-op.
func (ls *LedgerService) RemoveUser(ctx context.Context, entry models.Entry) error {
	return ls.Redis.RemoveFromList(ctx, utils.ArrivalLedgerKey, entry.Member())
}
