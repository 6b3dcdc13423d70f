package models

// Job is one unit of matchmaking work. Jobs are created by the front door or
// self-issued by the worker (clear jobs for users it detects as gone), and
// consumed exactly once from the job queue.
type Job struct {
	Kind         string       `json:"kind"`
	UserID       string       `json:"userId"`
	SessionEpoch int64        `json:"sessionEpoch"`
	UserData     *JobUserData `json:"userData,omitempty"`
}

// JobUserData carries the preferences a clear job needs to find every pool
// queue the user was enqueued into, since the status record may already be
// gone by the time the job runs.
type JobUserData struct {
	Difficulty string   `json:"difficulty"`
	Topics     []string `json:"topics"`
}
