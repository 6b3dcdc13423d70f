package utils

import "fmt"

// Redis key layout for the matching core. Everything lives under the
// "matching:" prefix so other services sharing the instance stay out of
// our keyspace.
const (
	// JobQueueKey is the list holding pending match/clear jobs.
	JobQueueKey = "matching:queue:jobs"

	// ArrivalLedgerKey is the list recording arrival order for FCFS tie-breaks.
	ArrivalLedgerKey = "matching:arrivals"

	// MatchFoundChannel is the Pub/Sub channel the session service listens on.
	MatchFoundChannel = "matching:events:match-found"

	// UserKeyPattern matches every user status record.
	UserKeyPattern = "matching:user:*"

	// PoolKeyPattern matches every candidate pool queue.
	PoolKeyPattern = "matching:pool:*"
)

// UserKey returns the hash key holding a user's status record.
func UserKey(userID string) string {
	return "matching:user:" + userID
}

// LivenessKey returns the expiring key whose TTL is the user's liveness timer.
// It is deliberately separate from the status record so the record survives
// the timer lapsing.
func LivenessKey(userID string) string {
	return "matching:liveness:" + userID
}

// PoolKey returns the candidate queue for one (difficulty, topic) pair.
func PoolKey(difficulty, topic string) string {
	return fmt.Sprintf("matching:pool:%s:%s", difficulty, topic)
}

// MatchKey returns the key the collaboration service reads a finalized
// match record from.
func MatchKey(matchID string) string {
	return "matching:match:" + matchID
}
