package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry identifies a user's membership in a candidate pool or the arrival
// ledger. The epoch pins the membership to one matchmaking attempt: an entry
// whose epoch no longer matches the user's record is stale and gets purged
// lazily when a scan encounters it.
type Entry struct {
	UserID       string
	SessionEpoch int64
}

// Member encodes the entry as the list member string stored in Redis.
func (e Entry) Member() string {
	return fmt.Sprintf("%s@%d", e.UserID, e.SessionEpoch)
}

// ParseEntry decodes a list member string back into an Entry.
func ParseEntry(member string) (Entry, error) {
	i := strings.LastIndex(member, "@")
	if i < 1 {
		return Entry{}, fmt.Errorf("malformed pool entry %q", member)
	}
	epoch, err := strconv.ParseInt(member[i+1:], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed pool entry epoch in %q: %w", member, err)
	}
	return Entry{UserID: member[:i], SessionEpoch: epoch}, nil
}
