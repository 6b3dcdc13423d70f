package services

import (
	"context"
	"testing"
	"time"

	"pairup_server/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestRedis spins up an embedded Redis and the adapter over it.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, &RedisService{Client: client}
}

// selectCall records one invocation of the stub question selector.
type selectCall struct {
	matchID    string
	difficulty string
	topics     []string
}

// stubSelector is a canned question-selection collaborator.
type stubSelector struct {
	questionID string
	err        error
	calls      []selectCall
}

func (s *stubSelector) SelectQuestion(ctx context.Context, matchID, difficulty string, topics []string) (string, error) {
	s.calls = append(s.calls, selectCall{matchID: matchID, difficulty: difficulty, topics: topics})
	return s.questionID, s.err
}

// matchHarness bundles a worker and its dependencies over one embedded Redis.
type matchHarness struct {
	mr       *miniredis.Miniredis
	redis    *RedisService
	status   *StatusService
	pools    *PoolService
	ledger   *LedgerService
	queue    *QueueService
	selector *stubSelector
	worker   *MatchService
}

func newMatchHarness(t *testing.T) *matchHarness {
	t.Helper()
	mr, rs := newTestRedis(t)
	h := &matchHarness{
		mr:       mr,
		redis:    rs,
		status:   &StatusService{Redis: rs},
		pools:    &PoolService{Redis: rs},
		ledger:   &LedgerService{Redis: rs},
		queue:    &QueueService{Redis: rs},
		selector: &stubSelector{},
	}
	h.worker = h.newWorker()
	return h
}

// newWorker builds another worker instance over the same shared store, for
// tests interleaving multiple workers.
func (h *matchHarness) newWorker() *MatchService {
	return &MatchService{
		Redis:     h.redis,
		Status:    h.status,
		Pools:     h.pools,
		Ledger:    h.ledger,
		Queue:     h.queue,
		Questions: h.selector,
		Notifier:  &NotificationService{Redis: h.redis},
	}
}

// addWaitingUser writes a fresh waiting record with healthy liveness.
func (h *matchHarness) addWaitingUser(t *testing.T, userID, difficulty string, topics []string, epoch int64) models.UserStatusRecord {
	t.Helper()
	ctx := context.Background()
	record := models.UserStatusRecord{
		UserID:       userID,
		SessionEpoch: epoch,
		Status:       models.StatusWaiting,
		Difficulty:   difficulty,
		Topics:       topics,
		LastSeenAt:   time.Now().UnixMilli(),
	}
	if err := h.status.Upsert(ctx, record); err != nil {
		t.Fatalf("upsert %s: %v", userID, err)
	}
	if err := h.status.SetLiveness(ctx, userID, models.InitialLivenessTTL); err != nil {
		t.Fatalf("set liveness %s: %v", userID, err)
	}
	return record
}

// poolUser puts a user into their pools and the ledger the way the worker's
// no-match path would.
func (h *matchHarness) poolUser(t *testing.T, record models.UserStatusRecord) {
	t.Helper()
	ctx := context.Background()
	entry := models.Entry{UserID: record.UserID, SessionEpoch: record.SessionEpoch}
	if err := h.pools.EnqueueUser(ctx, entry, record.Difficulty, record.Topics); err != nil {
		t.Fatalf("pool enqueue %s: %v", record.UserID, err)
	}
	if err := h.ledger.EnqueueUser(ctx, entry); err != nil {
		t.Fatalf("ledger enqueue %s: %v", record.UserID, err)
	}
}

// processNextJob dequeues one job and runs it through the given worker.
func (h *matchHarness) processNextJob(t *testing.T, worker *MatchService) models.Job {
	t.Helper()
	job, err := h.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	worker.ProcessJob(context.Background(), job)
	return job
}

// enqueueMatchRequest submits a match request job for a user.
func (h *matchHarness) enqueueMatchRequest(t *testing.T, userID string, epoch int64) {
	t.Helper()
	err := h.queue.Enqueue(context.Background(), models.Job{
		Kind:         models.JobKindMatchRequest,
		UserID:       userID,
		SessionEpoch: epoch,
	})
	if err != nil {
		t.Fatalf("enqueue match request for %s: %v", userID, err)
	}
}

// mustGet loads a record that is expected to exist.
func (h *matchHarness) mustGet(t *testing.T, userID string) *models.UserStatusRecord {
	t.Helper()
	record, err := h.status.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get %s: %v", userID, err)
	}
	if record == nil {
		t.Fatalf("expected a record for %s", userID)
	}
	return record
}
