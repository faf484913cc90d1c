package memory

import (
	"context"
	"sync"
	"time"

	"solomon/internal/shared/outbox"

	contractsv1 "solomon/contracts/gen/events/v1"

	"github.com/google/uuid"
)

// Store is an in-process implementation of outbox.Store. bootstrap wires it
// as the shared store of the API and worker processes; the module has no
// postgres-backed outbox.Store, so queued rows do not survive a restart.
type Store struct {
	mu   sync.Mutex
	rows map[string]outbox.Row
}

func NewStore() *Store {
	return &Store{rows: make(map[string]outbox.Row)}
}

// Append queues a new row in PENDING, immediately eligible for claim.
func (s *Store) Append(_ context.Context, eventType, aggregateType, aggregateID string, envelope contractsv1.Envelope, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.rows[id] = outbox.Row{
		ID:            id,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Envelope:      envelope,
		Status:        outbox.StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id, nil
}

// ClaimBatch moves every PENDING row due at now (and every CLAIMED row
// whose lease has expired) into CLAIMED, bounded by limit.
func (s *Store) ClaimBatch(_ context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]outbox.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := make([]outbox.Row, 0, limit)
	for id, row := range s.rows {
		if len(claimed) >= limit {
			break
		}
		switch row.Status {
		case outbox.StatusPending:
			if row.NextAttemptAt.After(now) {
				continue
			}
		case outbox.StatusClaimed:
			if row.ClaimedAt.Add(leaseTTL).After(now) {
				continue
			}
		default:
			continue
		}
		row.Status = outbox.StatusClaimed
		row.ClaimedAt = now
		row.UpdatedAt = now
		s.rows[id] = row
		claimed = append(claimed, row)
	}
	return claimed, nil
}

func (s *Store) MarkPublished(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	row.Status = outbox.StatusPublished
	row.UpdatedAt = now
	s.rows[id] = row
	return nil
}

func (s *Store) MarkRetry(_ context.Context, id string, now, nextAttemptAt time.Time, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	row.Status = outbox.StatusPending
	row.RetryCount = retryCount
	row.NextAttemptAt = nextAttemptAt
	row.UpdatedAt = now
	s.rows[id] = row
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	row.Status = outbox.StatusFailed
	row.UpdatedAt = now
	s.rows[id] = row
	return nil
}

// PurgeTerminal deletes PUBLISHED/FAILED rows older than olderThan, bounded
// by limit. Backs the reaper's housekeeping sweep (spec.md §4.7 #4);
// bootstrap wires it as the reaper's outbox purger.
func (s *Store) PurgeTerminal(_ context.Context, olderThan time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, row := range s.rows {
		if purged >= limit {
			break
		}
		if row.Status != outbox.StatusPublished && row.Status != outbox.StatusFailed {
			continue
		}
		if row.UpdatedAt.After(olderThan) {
			continue
		}
		delete(s.rows, id)
		purged++
	}
	return purged, nil
}

var _ outbox.Store = (*Store)(nil)
