package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"pairup_server/models"
	"pairup_server/utils"
)

// StatusService is the per-user status directory. Each user has a hash
// holding their UserStatusRecord and a separate expiring liveness key whose
// TTL is the time remaining in which the user may still be legitimately
// processed. Every consumer of a pool or ledger entry re-validates against
// this directory instead of trusting the entry itself.
type StatusService struct {
	Redis *RedisService
}

// Upsert writes the full record, creating or replacing it.
func (ss *StatusService) Upsert(ctx context.Context, record models.UserStatusRecord) error {
	fields, err := recordToHash(record)
	if err != nil {
		return err
	}
	return ss.Redis.SetHashFields(ctx, utils.UserKey(record.UserID), fields)
}

// Get loads a user's record. A missing record comes back as (nil, nil), the
// "user no longer exists" signal callers must handle explicitly.
func (ss *StatusService) Get(ctx context.Context, userID string) (*models.UserStatusRecord, error) {
	fields, err := ss.Redis.GetAllHashFields(ctx, utils.UserKey(userID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return recordFromHash(fields)
}

// SetStatus updates the status field of an existing record.
func (ss *StatusService) SetStatus(ctx context.Context, userID, status string) error {
	return ss.merge(ctx, userID, "SetStatus", func(r *models.UserStatusRecord) {
		r.Status = status
	})
}

// SetLastSeen updates the last-seen timestamp of an existing record.
func (ss *StatusService) SetLastSeen(ctx context.Context, userID string, seenAt time.Time) error {
	return ss.merge(ctx, userID, "SetLastSeen", func(r *models.UserStatusRecord) {
		r.LastSeenAt = seenAt.UnixMilli()
	})
}

// SetMatchID updates the assigned match id of an existing record.
func (ss *StatusService) SetMatchID(ctx context.Context, userID, matchID string) error {
	return ss.merge(ctx, userID, "SetMatchID", func(r *models.UserStatusRecord) {
		r.MatchID = matchID
	})
}

// merge is the read-merge-write cycle behind every field mutation. Mutating a
// missing record is a logged no-op so a removed user can never be resurrected
// as a partial hash.
func (ss *StatusService) merge(ctx context.Context, userID, op string, mutate func(*models.UserStatusRecord)) error {
	record, err := ss.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record == nil {
		log.Printf("[StatusDirectory] %s skipped: no record for user %s", op, userID)
		return nil
	}
	mutate(record)
	return ss.Upsert(ctx, *record)
}

// Remove deletes the record and its liveness timer.
func (ss *StatusService) Remove(ctx context.Context, userID string) error {
	return ss.Redis.DeleteKeys(ctx, utils.UserKey(userID), utils.LivenessKey(userID))
}

// ListAll returns every live status record.
func (ss *StatusService) ListAll(ctx context.Context) ([]models.UserStatusRecord, error) {
	keys, err := ss.Redis.ListKeys(ctx, utils.UserKeyPattern)
	if err != nil {
		return nil, err
	}
	records := make([]models.UserStatusRecord, 0, len(keys))
	for _, key := range keys {
		fields, err := ss.Redis.GetAllHashFields(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue // expired between listing and read
		}
		record, err := recordFromHash(fields)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// SetLiveness starts (or restarts) the user's liveness timer.
func (ss *StatusService) SetLiveness(ctx context.Context, userID string, ttl time.Duration) error {
	return ss.Redis.SetKey(ctx, utils.LivenessKey(userID), "1", ttl)
}

// GetLiveness returns the remaining liveness. Zero or negative means the user
// has no guaranteed processing time left (the timer lapsed or never existed).
func (ss *StatusService) GetLiveness(ctx context.Context, userID string) (time.Duration, error) {
	return ss.Redis.GetExpiry(ctx, utils.LivenessKey(userID))
}

// ExtendLiveness pushes the liveness timer out to the given TTL. If the timer
// already lapsed the key is recreated, since callers extend only after
// deciding the user is still reachable.
func (ss *StatusService) ExtendLiveness(ctx context.Context, userID string, ttl time.Duration) error {
	return ss.SetLiveness(ctx, userID, ttl)
}

// ClearLiveness drops the liveness timer entirely.
func (ss *StatusService) ClearLiveness(ctx context.Context, userID string) error {
	return ss.Redis.DeleteKeys(ctx, utils.LivenessKey(userID))
}

func recordToHash(record models.UserStatusRecord) (map[string]interface{}, error) {
	topics, err := json.Marshal(record.Topics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal topics for user '%s': %w", record.UserID, err)
	}
	return map[string]interface{}{
		"userId":       record.UserID,
		"sessionEpoch": record.SessionEpoch,
		"status":       record.Status,
		"difficulty":   record.Difficulty,
		"topics":       string(topics),
		"lastSeenAt":   record.LastSeenAt,
		"matchId":      record.MatchID,
	}, nil
}

func recordFromHash(fields map[string]string) (*models.UserStatusRecord, error) {
	epoch, err := strconv.ParseInt(fields["sessionEpoch"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed sessionEpoch for user '%s': %w", fields["userId"], err)
	}
	lastSeen, err := strconv.ParseInt(fields["lastSeenAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed lastSeenAt for user '%s': %w", fields["userId"], err)
	}
	var topics []string
	if raw := fields["topics"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &topics); err != nil {
			return nil, fmt.Errorf("malformed topics for user '%s': %w", fields["userId"], err)
		}
	}
	return &models.UserStatusRecord{
		UserID:       fields["userId"],
		SessionEpoch: epoch,
		Status:       strings.TrimSpace(fields["status"]),
		Difficulty:   fields["difficulty"],
		Topics:       topics,
		LastSeenAt:   lastSeen,
		MatchID:      fields["matchId"],
	}, nil
}
