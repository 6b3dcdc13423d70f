package models

import "time"

// UserStatusRecord is the per-user matchmaking state. One live record per
// user; SessionEpoch increases each time the user re-enters matchmaking, and
// anything carrying an older epoch is void. Liveness is tracked by a separate
// expiring key, not by this record.
type UserStatusRecord struct {
	UserID       string   `json:"userId"`
	SessionEpoch int64    `json:"sessionEpoch"`
	Status       string   `json:"status"`
	Difficulty   string   `json:"difficulty"`
	Topics       []string `json:"topics"`
	LastSeenAt   int64    `json:"lastSeenAt"` // unix milliseconds
	MatchID      string   `json:"matchId,omitempty"`
}

// LastSeen returns LastSeenAt as a time.Time.
func (r *UserStatusRecord) LastSeen() time.Time {
	return time.UnixMilli(r.LastSeenAt)
}
