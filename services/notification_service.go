package services

import (
	"context"

	"pairup_server/utils"
)

// NotificationService signals the session service that a match is ready. The
// payload is just the match id; the full record is read from the match key.
type NotificationService struct {
	Redis *RedisService
}

// PublishMatchFound announces a finalized match on the match-found channel.
func (ns *NotificationService) PublishMatchFound(ctx context.Context, matchID string) error {
	return ns.Redis.Publish(ctx, utils.MatchFoundChannel, matchID)
}
