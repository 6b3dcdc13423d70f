package services

import (
	"context"
	"errors"
	"testing"

	"pairup_server/models"
)

func TestQueueDequeueEmpty(t *testing.T) {
	_, rs := newTestRedis(t)
	qs := &QueueService{Redis: rs}

	_, err := qs.Dequeue(context.Background())
	if !errors.Is(err, ErrNoJob) {
		t.Fatalf("expected ErrNoJob, got %v", err)
	}
}

func TestQueueFIFO(t *testing.T) {
	_, rs := newTestRedis(t)
	qs := &QueueService{Redis: rs}
	ctx := context.Background()

	jobs := []models.Job{
		{Kind: models.JobKindMatchRequest, UserID: "u1", SessionEpoch: 1},
		{Kind: models.JobKindClearRequest, UserID: "u2", SessionEpoch: 3,
			UserData: &models.JobUserData{Difficulty: "Easy", Topics: []string{"arrays"}}},
		{Kind: models.JobKindMatchRequest, UserID: "u3", SessionEpoch: 2},
	}
	for _, job := range jobs {
		if err := qs.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	for i, want := range jobs {
		got, err := qs.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got.Kind != want.Kind || got.UserID != want.UserID || got.SessionEpoch != want.SessionEpoch {
			t.Fatalf("dequeue %d: got %+v, want %+v", i, got, want)
		}
		if (got.UserData == nil) != (want.UserData == nil) {
			t.Fatalf("dequeue %d: userData presence mismatch", i)
		}
	}

	if _, err := qs.Dequeue(ctx); !errors.Is(err, ErrNoJob) {
		t.Fatalf("expected ErrNoJob after draining, got %v", err)
	}
}
