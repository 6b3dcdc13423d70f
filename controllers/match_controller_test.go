package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pairup_server/models"
	"pairup_server/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestController(t *testing.T) (*MatchController, *services.QueueService, *services.StatusService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rs := &services.RedisService{Client: client}
	statusService := &services.StatusService{Redis: rs}
	queueService := &services.QueueService{Redis: rs}
	return NewMatchController(statusService, queueService), queueService, statusService
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRequestMatchCreatesRecordAndJob(t *testing.T) {
	controller, queue, status := newTestController(t)
	ctx := context.Background()

	w := postJSON(t, controller.RequestMatch, map[string]interface{}{
		"userId":     "u1",
		"difficulty": "Easy",
		"topics":     []string{"arrays"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	record, err := status.Get(ctx, "u1")
	if err != nil || record == nil {
		t.Fatalf("expected a record: %v %v", record, err)
	}
	if record.SessionEpoch != 1 || record.Status != models.StatusWaiting {
		t.Fatalf("unexpected record %+v", record)
	}
	ttl, err := status.GetLiveness(ctx, "u1")
	if err != nil || ttl <= 0 {
		t.Fatalf("expected a running liveness timer, got %v %v", ttl, err)
	}

	job, err := queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("expected a queued job: %v", err)
	}
	if job.Kind != models.JobKindMatchRequest || job.UserID != "u1" || job.SessionEpoch != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestRequestMatchBumpsEpochOnReentry(t *testing.T) {
	controller, queue, status := newTestController(t)
	ctx := context.Background()

	body := map[string]interface{}{
		"userId":     "u1",
		"difficulty": "Easy",
		"topics":     []string{"arrays"},
	}
	postJSON(t, controller.RequestMatch, body)
	w := postJSON(t, controller.RequestMatch, body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	record, _ := status.Get(ctx, "u1")
	if record == nil || record.SessionEpoch != 2 {
		t.Fatalf("expected epoch 2 after re-entry, got %+v", record)
	}

	// Both jobs are queued; the worker's epoch gate voids the first.
	first, _ := queue.Dequeue(ctx)
	second, err := queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("expected two jobs: %v", err)
	}
	if first.SessionEpoch != 1 || second.SessionEpoch != 2 {
		t.Fatalf("unexpected epochs %d, %d", first.SessionEpoch, second.SessionEpoch)
	}
}

func TestRequestMatchValidation(t *testing.T) {
	controller, _, _ := newTestController(t)

	w := postJSON(t, controller.RequestMatch, map[string]interface{}{
		"userId": "u1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}
}

func TestCancelMatchEnqueuesClearAndRemovesRecord(t *testing.T) {
	controller, queue, status := newTestController(t)
	ctx := context.Background()

	postJSON(t, controller.RequestMatch, map[string]interface{}{
		"userId":     "u1",
		"difficulty": "Easy",
		"topics":     []string{"arrays", "strings"},
	})
	if _, err := queue.Dequeue(ctx); err != nil {
		t.Fatalf("drain match job: %v", err)
	}

	w := postJSON(t, controller.CancelMatch, map[string]interface{}{"userId": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	job, err := queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("expected a clear job: %v", err)
	}
	if job.Kind != models.JobKindClearRequest || job.SessionEpoch != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.UserData == nil || len(job.UserData.Topics) != 2 {
		t.Fatalf("clear job must carry preferences, got %+v", job.UserData)
	}

	record, err := status.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record != nil {
		t.Fatalf("record should be removed, got %+v", record)
	}
}

func TestCancelMatchForUnknownUserStillSucceeds(t *testing.T) {
	controller, queue, _ := newTestController(t)

	w := postJSON(t, controller.CancelMatch, map[string]interface{}{"userId": "ghost"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// A preference-less clear job still goes out so the worker can sweep.
	job, err := queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("expected a clear job: %v", err)
	}
	if job.Kind != models.JobKindClearRequest || job.UserData != nil {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestHeartbeatUnknownUser(t *testing.T) {
	controller, _, _ := newTestController(t)

	w := postJSON(t, controller.Heartbeat, map[string]interface{}{"userId": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	controller, _, status := newTestController(t)
	ctx := context.Background()

	postJSON(t, controller.RequestMatch, map[string]interface{}{
		"userId":     "u1",
		"difficulty": "Easy",
		"topics":     []string{"arrays"},
	})
	before, _ := status.Get(ctx, "u1")

	w := postJSON(t, controller.Heartbeat, map[string]interface{}{"userId": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	after, _ := status.Get(ctx, "u1")
	if after.LastSeenAt < before.LastSeenAt {
		t.Fatalf("heartbeat went backwards: %d -> %d", before.LastSeenAt, after.LastSeenAt)
	}
	ttl, err := status.GetLiveness(ctx, "u1")
	if err != nil || ttl < models.MinTTLToHandle {
		t.Fatalf("expected refreshed liveness, got %v %v", ttl, err)
	}
}

func TestGetStatus(t *testing.T) {
	controller, _, _ := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/?userId=ghost", nil)
	w := httptest.NewRecorder()
	controller.GetStatus(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", w.Code)
	}

	postJSON(t, controller.RequestMatch, map[string]interface{}{
		"userId":     "u1",
		"difficulty": "Easy",
		"topics":     []string{"arrays"},
	})

	req = httptest.NewRequest(http.MethodGet, "/?userId=u1", nil)
	w = httptest.NewRecorder()
	controller.GetStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var record models.UserStatusRecord
	if err := json.NewDecoder(w.Body).Decode(&record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.UserID != "u1" || record.Status != models.StatusWaiting {
		t.Fatalf("unexpected record %+v", record)
	}
}
