package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"pairup_server/models"
	"pairup_server/utils"

	"github.com/google/uuid"
)

const defaultPollInterval = 500 * time.Millisecond

// MatchService is the matching worker. It drains the job queue and operates
// over the shared status directory, candidate pools, and arrival ledger to
// pair compatible users. Several instances may run against the same store;
// correctness comes from epoch staleness checks, lazy eviction, and
// re-validating every candidate right before committing — never from locks.
type MatchService struct {
	Redis     *RedisService
	Status    *StatusService
	Pools     *PoolService
	Ledger    *LedgerService
	Queue     *QueueService
	Questions QuestionSelector
	Notifier  *NotificationService

	// PollInterval is the sleep between polls of an empty queue. Zero means
	// the default of 500ms.
	PollInterval time.Duration
}

// candidate is one surviving pool entry plus the topics it matched the
// requester on, accumulated across the requester's topic queues.
type candidate struct {
	entry  models.Entry
	topics []string
}

// Run drains the job queue until the context is cancelled. Each job is
// handled to completion before the next dequeue. No single job failure
// terminates the loop; store errors are logged and the job dropped, leaving
// recovery to future jobs and liveness timers.
func (ms *MatchService) Run(ctx context.Context) {
	log.Println("[MatchWorker] worker loop started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[MatchWorker] worker loop stopped")
			return
		default:
		}

		job, err := ms.Queue.Dequeue(ctx)
		if errors.Is(err, ErrNoJob) {
			time.Sleep(ms.pollInterval())
			continue
		}
		if err != nil {
			log.Printf("[MatchWorker] dequeue failed, backing off: %v", err)
			time.Sleep(ms.pollInterval())
			continue
		}
		ms.ProcessJob(ctx, job)
	}
}

func (ms *MatchService) pollInterval() time.Duration {
	if ms.PollInterval > 0 {
		return ms.PollInterval
	}
	return defaultPollInterval
}

// ProcessJob handles one dequeued job. Errors are logged, never returned up:
// a failed job is dropped and the user's own liveness-driven flow is the
// recovery path.
func (ms *MatchService) ProcessJob(ctx context.Context, job models.Job) {
	var err error
	switch job.Kind {
	case models.JobKindMatchRequest:
		err = ms.handleMatchRequest(ctx, job)
	case models.JobKindClearRequest:
		err = ms.handleClearRequest(ctx, job)
	default:
		log.Printf("[MatchWorker] dropping job with unknown kind %q for user %s", job.Kind, job.UserID)
		return
	}
	if err != nil {
		log.Printf("[MatchWorker] dropping %s job for user %s: %v", job.Kind, job.UserID, err)
	}
}

// handleClearRequest unconditionally removes the user's entry from the
// candidate pools and the arrival ledger. Missing entries are fine; clears
// are idempotent by design.
func (ms *MatchService) handleClearRequest(ctx context.Context, job models.Job) error {
	entry := models.Entry{UserID: job.UserID, SessionEpoch: job.SessionEpoch}

	switch {
	case job.UserData != nil:
		if err := ms.Pools.RemoveUser(ctx, entry, job.UserData.Difficulty, job.UserData.Topics); err != nil {
			return err
		}
	default:
		// No preferences on the job; try the record, else sweep every queue.
		record, err := ms.Status.Get(ctx, job.UserID)
		if err != nil {
			return err
		}
		if record != nil {
			if err := ms.Pools.RemoveUser(ctx, entry, record.Difficulty, record.Topics); err != nil {
				return err
			}
		} else if err := ms.Pools.RemoveEverywhere(ctx, entry); err != nil {
			return err
		}
	}
	return ms.Ledger.RemoveUser(ctx, entry)
}

// handleMatchRequest runs one matching attempt for a user: gate, search,
// rank, commit — falling back to the waiting pool when nothing commits.
func (ms *MatchService) handleMatchRequest(ctx context.Context, job models.Job) error {
	record, err := ms.Status.Get(ctx, job.UserID)
	if err != nil {
		return err
	}
	if record == nil {
		log.Printf("[MatchWorker] no record for user %s, dropping request", job.UserID)
		return nil
	}

	ok, err := ms.canMatchUser(ctx, job, record)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	candidates, err := ms.getPotentialMatches(ctx, record)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return ms.addUserToMatchingPool(ctx, job)
	}

	matched, err := ms.tryMatchCandidates(ctx, record, candidates)
	if err != nil {
		return err
	}
	if !matched {
		return ms.addUserToMatchingPool(ctx, job)
	}
	return nil
}

// canMatchUser is the eligibility gate. A request is actionable only if it
// carries the record's current epoch, the user has been seen recently, their
// liveness timer leaves enough runway, and they are still waiting. A user
// past the disconnect threshold is additionally marked disconnected, given a
// grace TTL, and swept via a self-issued clear job.
func (ms *MatchService) canMatchUser(ctx context.Context, job models.Job, record *models.UserStatusRecord) (bool, error) {
	if job.SessionEpoch != record.SessionEpoch {
		log.Printf("[MatchWorker] stale request for user %s (job epoch %d, current %d)",
			job.UserID, job.SessionEpoch, record.SessionEpoch)
		return false, nil
	}
	if ms.isPastDisconnectThreshold(record) {
		log.Printf("[MatchWorker] user %s exceeded disconnect threshold, marking disconnected", record.UserID)
		if err := ms.markDisconnected(ctx, record); err != nil {
			return false, err
		}
		return false, nil
	}
	ttl, err := ms.Status.GetLiveness(ctx, record.UserID)
	if err != nil {
		return false, err
	}
	if ttl < models.MinTTLToHandle {
		log.Printf("[MatchWorker] user %s has insufficient liveness (%v), dropping request", record.UserID, ttl)
		return false, nil
	}
	if record.Status != models.StatusWaiting {
		log.Printf("[MatchWorker] user %s is %s, not waiting, dropping request", record.UserID, record.Status)
		return false, nil
	}
	return true, nil
}

func (ms *MatchService) isPastDisconnectThreshold(record *models.UserStatusRecord) bool {
	return time.Since(record.LastSeen()) > models.DisconnectThreshold
}

// markDisconnected flips the user to disconnected, grants the grace TTL so
// the sweep can still run, and enqueues exactly one clear job carrying the
// preferences needed to find all their pool entries.
func (ms *MatchService) markDisconnected(ctx context.Context, record *models.UserStatusRecord) error {
	if err := ms.Status.SetStatus(ctx, record.UserID, models.StatusDisconnected); err != nil {
		return err
	}
	if err := ms.Status.SetLiveness(ctx, record.UserID, models.DisconnectGraceTTL); err != nil {
		return err
	}
	return ms.Queue.Enqueue(ctx, models.Job{
		Kind:         models.JobKindClearRequest,
		UserID:       record.UserID,
		SessionEpoch: record.SessionEpoch,
		UserData: &models.JobUserData{
			Difficulty: record.Difficulty,
			Topics:     record.Topics,
		},
	})
}

// getPotentialMatches scans the head of each of the requester's topic queues.
// Entries that fail validation are lazily evicted from that queue and the
// ledger; the first survivor per topic becomes a candidate. The result maps
// candidate ids to the topics they matched on.
func (ms *MatchService) getPotentialMatches(ctx context.Context, requester *models.UserStatusRecord) (map[string]*candidate, error) {
	found := make(map[string]*candidate)
	for _, topic := range requester.Topics {
		for {
			head, err := ms.Pools.PeekHead(ctx, requester.Difficulty, topic)
			if err != nil {
				return nil, err
			}
			if head == nil {
				break // queue exhausted
			}
			candidateRecord, err := ms.validateCandidate(ctx, requester, *head)
			if err != nil {
				return nil, err
			}
			if candidateRecord == nil {
				if err := ms.Pools.RemoveFromTopic(ctx, *head, requester.Difficulty, topic); err != nil {
					return nil, err
				}
				if err := ms.Ledger.RemoveUser(ctx, *head); err != nil {
					return nil, err
				}
				continue
			}
			if existing, seen := found[head.UserID]; seen {
				existing.topics = append(existing.topics, topic)
			} else {
				found[head.UserID] = &candidate{entry: *head, topics: []string{topic}}
			}
			break
		}
	}
	return found, nil
}

// validateCandidate checks whether a pool entry is still usable: not the
// requester, backed by a live record, epoch-fresh, within the disconnect
// threshold, and still waiting. Returns the candidate's record when usable,
// nil when the entry must be discarded. A disconnected candidate gets the
// same side effects as a disconnected requester.
func (ms *MatchService) validateCandidate(ctx context.Context, requester *models.UserStatusRecord, entry models.Entry) (*models.UserStatusRecord, error) {
	if entry.UserID == requester.UserID {
		return nil, nil
	}
	record, err := ms.Status.Get(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if record.SessionEpoch != entry.SessionEpoch {
		return nil, nil
	}
	if ms.isPastDisconnectThreshold(record) {
		log.Printf("[MatchWorker] candidate %s exceeded disconnect threshold, marking disconnected", record.UserID)
		if err := ms.markDisconnected(ctx, record); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if record.Status != models.StatusWaiting {
		return nil, nil
	}
	return record, nil
}

// addUserToMatchingPool is the "no match yet, go wait" path. The requester is
// re-validated first: a superseded or disconnected user must not be inserted.
func (ms *MatchService) addUserToMatchingPool(ctx context.Context, job models.Job) error {
	record, err := ms.Status.Get(ctx, job.UserID)
	if err != nil {
		return err
	}
	if record == nil {
		log.Printf("[MatchWorker] user %s vanished before pool insert, dropping", job.UserID)
		return nil
	}
	if record.SessionEpoch != job.SessionEpoch {
		log.Printf("[MatchWorker] user %s superseded before pool insert (job epoch %d, current %d)",
			job.UserID, job.SessionEpoch, record.SessionEpoch)
		return nil
	}
	if ms.isPastDisconnectThreshold(record) {
		log.Printf("[MatchWorker] user %s disconnected before pool insert", job.UserID)
		return ms.markDisconnected(ctx, record)
	}

	entry := models.Entry{UserID: record.UserID, SessionEpoch: record.SessionEpoch}
	if err := ms.Pools.EnqueueUser(ctx, entry, record.Difficulty, record.Topics); err != nil {
		return err
	}
	if err := ms.Ledger.EnqueueUser(ctx, entry); err != nil {
		return err
	}
	return ms.Status.SetStatus(ctx, record.UserID, models.StatusWaiting)
}

// tryMatchCandidates walks candidates in arrival order, re-validating each
// immediately before committing since time has passed since the scan. The
// first candidate that both survives re-validation and yields a question id
// gets the match. Returns false when every candidate fell through.
func (ms *MatchService) tryMatchCandidates(ctx context.Context, requester *models.UserStatusRecord, candidates map[string]*candidate) (bool, error) {
	matchID := uuid.NewString()

	ranked, err := ms.rankCandidates(ctx, candidates)
	if err != nil {
		return false, err
	}

	for _, cand := range ranked {
		candidateRecord, err := ms.validateCandidate(ctx, requester, cand.entry)
		if err != nil {
			return false, err
		}
		if candidateRecord == nil {
			continue
		}

		questionID, err := ms.Questions.SelectQuestion(ctx, matchID, requester.Difficulty, cand.topics)
		if err != nil {
			log.Printf("[MatchWorker] question selection failed for candidate %s: %v", cand.entry.UserID, err)
			continue
		}
		if questionID == "" {
			log.Printf("[MatchWorker] no compatible question for candidate %s, trying next", cand.entry.UserID)
			continue
		}

		if err := ms.finalizeMatch(ctx, matchID, requester, candidateRecord, cand.entry, questionID); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// rankCandidates orders candidates by arrival-ledger position ascending, so
// whoever has waited longest is tried first. A candidate with no ledger
// position cannot be tie-broken and is skipped.
func (ms *MatchService) rankCandidates(ctx context.Context, candidates map[string]*candidate) ([]*candidate, error) {
	type rankedCandidate struct {
		cand *candidate
		pos  int64
	}
	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		pos, present, err := ms.Ledger.GetPosition(ctx, cand.entry)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		ranked = append(ranked, rankedCandidate{cand: cand, pos: pos})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].pos < ranked[j].pos })

	out := make([]*candidate, len(ranked))
	for i, r := range ranked {
		out[i] = r.cand
	}
	return out, nil
}

// finalizeMatch commits the pairing: extends both liveness timers so the
// session flow has time to run, flips both records to matched, persists the
// match record for the collaboration service, publishes the notification, and
// removes the matched candidate from the pools and ledger. The requester was
// never inserted for this attempt, so only the candidate needs removal.
func (ms *MatchService) finalizeMatch(ctx context.Context, matchID string, requester, candidateRecord *models.UserStatusRecord, candidateEntry models.Entry, questionID string) error {
	for _, userID := range []string{requester.UserID, candidateRecord.UserID} {
		if err := ms.Status.ExtendLiveness(ctx, userID, models.PostMatchTTL); err != nil {
			return err
		}
		if err := ms.Status.SetMatchID(ctx, userID, matchID); err != nil {
			return err
		}
		if err := ms.Status.SetStatus(ctx, userID, models.StatusMatched); err != nil {
			return err
		}
	}

	match := models.Match{
		MatchID:    matchID,
		UserAID:    requester.UserID,
		UserBID:    candidateRecord.UserID,
		QuestionID: questionID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", matchID, err)
	}
	if err := ms.Redis.SetKey(ctx, utils.MatchKey(matchID), payload, models.MatchRecordTTL); err != nil {
		return err
	}

	if err := ms.Notifier.PublishMatchFound(ctx, matchID); err != nil {
		// The match is already committed; the session service can still find
		// it by polling the match key.
		log.Printf("[MatchWorker] match %s created but notification failed: %v", matchID, err)
	}

	if err := ms.Pools.RemoveUser(ctx, candidateEntry, candidateRecord.Difficulty, candidateRecord.Topics); err != nil {
		return err
	}
	if err := ms.Ledger.RemoveUser(ctx, candidateEntry); err != nil {
		return err
	}

	log.Printf("[MatchWorker] matched %s with %s on question %s (match %s)",
		requester.UserID, candidateRecord.UserID, questionID, matchID)
	return nil
}
