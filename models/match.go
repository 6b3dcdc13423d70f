package models

// Match is the finalized pairing written for the collaboration service. It is
// created once by the worker and never mutated afterwards.
type Match struct {
	MatchID    string `json:"matchId"`
	UserAID    string `json:"userAId"`
	UserBID    string `json:"userBId"`
	QuestionID string `json:"questionId"`
	CreatedAt  string `json:"createdAt"` // RFC 3339 timestamp of creation
}
