package models

import "time"

// User statuses in the matching directory
const (
	StatusWaiting      = "waiting"
	StatusMatched      = "matched"
	StatusDisconnected = "disconnected"
	StatusTimedOut     = "timedOut"
)

// Job kinds consumed by the matching worker
const (
	JobKindMatchRequest = "match_request"
	JobKindClearRequest = "clear_request"
)

// Timing constants shared with the front door and the session service.
const (
	// DisconnectThreshold is the maximum gap since a user's last heartbeat
	// before the worker presumes them gone.
	DisconnectThreshold = 30 * time.Second

	// MinTTLToHandle is the minimum remaining liveness a request needs to be
	// worth processing at all.
	MinTTLToHandle = 10 * time.Second

	// DisconnectGraceTTL is the short liveness window granted to a user the
	// worker just marked disconnected, so their clear job can still run.
	DisconnectGraceTTL = 60 * time.Second

	// PostMatchTTL is the liveness both users get on a successful match, long
	// enough for the downstream session-creation flow to pick them up.
	PostMatchTTL = 120 * time.Second

	// InitialLivenessTTL is the liveness granted when a user enters
	// matchmaking or sends a heartbeat.
	InitialLivenessTTL = 60 * time.Second

	// MatchRecordTTL is how long a finalized match record stays readable for
	// the collaboration service.
	MatchRecordTTL = 10 * time.Minute
)
