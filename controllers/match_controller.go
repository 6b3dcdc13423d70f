package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"pairup_server/models"
	"pairup_server/services"
)

// MatchController handles HTTP requests for entering and leaving matchmaking.
// It only writes status records and enqueues jobs; every pool and ledger
// mutation belongs to the matching worker.
type MatchController struct {
	StatusService *services.StatusService
	QueueService  *services.QueueService
}

// NewMatchController creates a new MatchController instance
func NewMatchController(statusService *services.StatusService, queueService *services.QueueService) *MatchController {
	return &MatchController{StatusService: statusService, QueueService: queueService}
}

type matchRequestBody struct {
	UserID     string   `json:"userId"`
	Difficulty string   `json:"difficulty"`
	Topics     []string `json:"topics"`
}

// RequestMatch enters a user into matchmaking: bumps their session epoch,
// writes a fresh waiting record, starts the liveness timer, and enqueues a
// match request for the worker.
func (mc *MatchController) RequestMatch(w http.ResponseWriter, r *http.Request) {
	var body matchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" || body.Difficulty == "" || len(body.Topics) == 0 {
		http.Error(w, "userId, difficulty and topics are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// A new attempt supersedes everything issued under the previous epoch.
	epoch := int64(1)
	if existing, err := mc.StatusService.Get(ctx, body.UserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	} else if existing != nil {
		epoch = existing.SessionEpoch + 1
	}

	record := models.UserStatusRecord{
		UserID:       body.UserID,
		SessionEpoch: epoch,
		Status:       models.StatusWaiting,
		Difficulty:   body.Difficulty,
		Topics:       body.Topics,
		LastSeenAt:   time.Now().UnixMilli(),
	}
	if err := mc.StatusService.Upsert(ctx, record); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := mc.StatusService.SetLiveness(ctx, body.UserID, models.InitialLivenessTTL); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := mc.QueueService.Enqueue(ctx, models.Job{
		Kind:         models.JobKindMatchRequest,
		UserID:       body.UserID,
		SessionEpoch: epoch,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "Match request queued",
		"sessionEpoch": epoch,
	})
}

// CancelMatch withdraws a user from matchmaking. The clear job carries the
// user's preferences so the worker can sweep every pool queue even after the
// record below is removed.
func (mc *MatchController) CancelMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	record, err := mc.StatusService.Get(ctx, body.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job := models.Job{Kind: models.JobKindClearRequest, UserID: body.UserID}
	if record != nil {
		job.SessionEpoch = record.SessionEpoch
		job.UserData = &models.JobUserData{Difficulty: record.Difficulty, Topics: record.Topics}
	}
	if err := mc.QueueService.Enqueue(ctx, job); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record != nil {
		if err := mc.StatusService.Remove(ctx, body.UserID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Match request cancelled",
	})
}

// Heartbeat refreshes a user's last-seen timestamp and liveness timer.
func (mc *MatchController) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	record, err := mc.StatusService.Get(ctx, body.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "user is not in matchmaking", http.StatusNotFound)
		return
	}

	if err := mc.StatusService.SetLastSeen(ctx, body.UserID, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := mc.StatusService.ExtendLiveness(ctx, body.UserID, models.InitialLivenessTTL); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Heartbeat recorded",
	})
}

// GetStatus returns the user's current record so clients can poll for the
// outcome of their request.
func (mc *MatchController) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	record, err := mc.StatusService.Get(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "user is not in matchmaking", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(record)
}
