package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "solomon/contexts/number-marketplace/wallet-service/domain/errors"
	"solomon/contexts/number-marketplace/wallet-service/ports"

	"github.com/google/uuid"
)

type reservation struct {
	ReservationID string
	UserID        string
	Amount        float64
	Open          bool
}

type Store struct {
	mu           sync.Mutex
	balances     map[string]float64
	reservations map[string]reservation
	ledger       []ports.LedgerEntry
	idempotency  map[string]ports.IdempotencyRecord
	sequence     int
}

func NewStore() *Store {
	return &Store{
		balances:     make(map[string]float64),
		reservations: make(map[string]reservation),
		idempotency:  make(map[string]ports.IdempotencyRecord),
	}
}

// Credit seeds or tops up a user's available balance. Test and bootstrap helper.
func (s *Store) Credit(userID string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += amount
}

func (s *Store) GetAvailableBalance(_ context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[strings.TrimSpace(userID)], nil
}

func (s *Store) CreateReservation(_ context.Context, input ports.ReserveInput, now time.Time) (ports.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := strings.TrimSpace(input.UserID)
	if s.balances[userID] < input.Amount {
		return ports.LedgerEntry{}, domainerrors.ErrInsufficientBalance
	}
	s.balances[userID] -= input.Amount

	reservationID := "rsv_" + s.nextID()
	s.reservations[reservationID] = reservation{
		ReservationID: reservationID,
		UserID:        userID,
		Amount:        input.Amount,
		Open:          true,
	}
	entry := ports.LedgerEntry{
		EntryID:        "le_" + s.nextID(),
		UserID:         userID,
		Kind:           ports.LedgerEntryReserve,
		Amount:         input.Amount,
		ReservationID:  reservationID,
		Reason:         input.Reason,
		Memo:           input.Memo,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now.UTC(),
	}
	s.ledger = append(s.ledger, entry)
	return entry, nil
}

func (s *Store) CommitReservation(_ context.Context, input ports.SettleInput, now time.Time) (ports.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rsv, ok := s.reservations[strings.TrimSpace(input.ReservationID)]
	if !ok {
		return ports.LedgerEntry{}, domainerrors.ErrReservationNotFound
	}
	if !rsv.Open {
		return ports.LedgerEntry{}, domainerrors.ErrReservationClosed
	}
	rsv.Open = false
	s.reservations[rsv.ReservationID] = rsv

	entry := ports.LedgerEntry{
		EntryID:        "le_" + s.nextID(),
		UserID:         rsv.UserID,
		Kind:           ports.LedgerEntryCommit,
		Amount:         rsv.Amount,
		ReservationID:  rsv.ReservationID,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now.UTC(),
	}
	s.ledger = append(s.ledger, entry)
	return entry, nil
}

func (s *Store) RollbackReservation(_ context.Context, input ports.SettleInput, now time.Time) (ports.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rsv, ok := s.reservations[strings.TrimSpace(input.ReservationID)]
	if !ok {
		return ports.LedgerEntry{}, domainerrors.ErrReservationNotFound
	}
	if !rsv.Open {
		return ports.LedgerEntry{}, domainerrors.ErrReservationClosed
	}
	rsv.Open = false
	s.reservations[rsv.ReservationID] = rsv
	s.balances[rsv.UserID] += rsv.Amount

	entry := ports.LedgerEntry{
		EntryID:        "le_" + s.nextID(),
		UserID:         rsv.UserID,
		Kind:           ports.LedgerEntryRollback,
		Amount:         rsv.Amount,
		ReservationID:  rsv.ReservationID,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now.UTC(),
	}
	s.ledger = append(s.ledger, entry)
	return entry, nil
}

func (s *Store) CreateRefund(_ context.Context, input ports.RefundInput, now time.Time) (ports.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := strings.TrimSpace(input.UserID)
	s.balances[userID] += input.Amount

	entry := ports.LedgerEntry{
		EntryID:        "le_" + s.nextID(),
		UserID:         userID,
		Kind:           ports.LedgerEntryRefund,
		Amount:         input.Amount,
		Reason:         input.Reason,
		Memo:           input.Memo,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now.UTC(),
	}
	s.ledger = append(s.ledger, entry)
	return entry, nil
}

func (s *Store) ListLedger(_ context.Context, userID string, limit int) ([]ports.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]ports.LedgerEntry, 0)
	for _, e := range s.ledger {
		if e.UserID == strings.TrimSpace(userID) {
			items = append(items, e)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, strings.TrimSpace(key))
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if existing, ok := s.idempotency[key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = record
	return nil
}

func (s *Store) Now() time.Time { return time.Now().UTC() }

func (s *Store) NewID(_ context.Context) (string, error) { return uuid.NewString(), nil }

func (s *Store) nextID() string {
	s.sequence++
	return uuid.NewString()[:8]
}

var (
	_ ports.Repository       = (*Store)(nil)
	_ ports.IdempotencyStore = (*Store)(nil)
	_ ports.Clock            = (*Store)(nil)
	_ ports.IDGenerator      = (*Store)(nil)
)
