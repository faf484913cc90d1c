package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	"solomon/contexts/number-marketplace/activation-service/ports"
)

// Store is an in-memory Repository + OutboxWriter + Clock + IDGenerator,
// built for tests and the local dev module, mirroring the shape of the
// other number-marketplace services' in-memory adapters.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	activations    map[string]ports.Activation
	byIdempotency  map[string]string
	history        map[string][]ports.StateHistoryEntry
	numbers        map[string]ports.Number
	numbersByActID map[string]string
	smsKeys        map[string]bool
	smsByNumber    map[string][]ports.SmsMessage
	outbox         []ports.EventEnvelope
	seq            int
}

func NewStore() *Store {
	return &Store{
		activations:    make(map[string]ports.Activation),
		byIdempotency:  make(map[string]string),
		history:        make(map[string][]ports.StateHistoryEntry),
		numbers:        make(map[string]ports.Number),
		numbersByActID: make(map[string]string),
		smsKeys:        make(map[string]bool),
		smsByNumber:    make(map[string][]ports.SmsMessage),
	}
}

type memTx struct{}

func (s *Store) CreateActivation(ctx context.Context, input ports.CreateActivationInput, now time.Time) (ports.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activation := ports.Activation{
		ActivationID:   input.ActivationID,
		UserID:         input.UserID,
		ProviderID:     input.ProviderID,
		PriceCents:     input.PriceCents,
		State:          statemachine.Reserved,
		CreatedAt:      now,
		IdempotencyKey: input.IdempotencyKey,
		ReservationID:  input.ReservationID,
		TraceID:        input.TraceID,
	}
	s.activations[activation.ActivationID] = activation
	if activation.IdempotencyKey != "" {
		s.byIdempotency[activation.IdempotencyKey] = activation.ActivationID
	}
	return activation, nil
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (ports.Activation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activationID, ok := s.byIdempotency[key]
	if !ok {
		return ports.Activation{}, false, nil
	}
	activation, ok := s.activations[activationID]
	return activation, ok, nil
}

func (s *Store) GetActivation(ctx context.Context, activationID string) (ports.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activation, ok := s.activations[activationID]
	if !ok {
		return ports.Activation{}, domainerrors.ErrActivationNotFound
	}
	return activation, nil
}

func (s *Store) WithActivationLock(ctx context.Context, activationID string, fn func(tx ports.Tx, current ports.Activation) (ports.Activation, error)) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	current, ok := s.activations[activationID]
	s.mu.Unlock()
	if !ok {
		return domainerrors.ErrActivationNotFound
	}
	updated, err := fn(memTx{}, current)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.activations[activationID] = updated
	s.mu.Unlock()
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, tx ports.Tx, entry ports.StateHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.ActivationID] = append(s.history[entry.ActivationID], entry)
	return nil
}

func (s *Store) ListHistory(ctx context.Context, activationID string) ([]ports.StateHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.history[activationID]
	out := make([]ports.StateHistoryEntry, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) CreateNumber(ctx context.Context, tx ports.Tx, number ports.Number) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if number.Status == "" {
		number.Status = ports.NumberStatusActive
	}
	s.numbers[number.NumberID] = number
	s.numbersByActID[number.ActivationID] = number.NumberID
	return nil
}

func (s *Store) GetNumberByActivation(ctx context.Context, activationID string) (ports.Number, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	numberID, ok := s.numbersByActID[activationID]
	if !ok {
		return ports.Number{}, false, nil
	}
	number, ok := s.numbers[numberID]
	return number, ok, nil
}

func (s *Store) UpdateNumberStatus(ctx context.Context, tx ports.Tx, numberID string, status ports.NumberStatus, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	number, ok := s.numbers[numberID]
	if !ok {
		return fmt.Errorf("number %s not found", numberID)
	}
	number.Status = status
	if !expiresAt.IsZero() {
		number.ExpiresAt = expiresAt
	}
	s.numbers[numberID] = number
	return nil
}

func (s *Store) ListExpirableNumbers(ctx context.Context, before time.Time, limit int) ([]ports.Number, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.Number
	for _, number := range s.numbers {
		if number.Status != ports.NumberStatusActive && number.Status != ports.NumberStatusReceived {
			continue
		}
		if number.ExpiresAt.After(before) {
			continue
		}
		out = append(out, number)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListZombieActivations(ctx context.Context, before time.Time, limit int) ([]ports.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.Activation
	for _, activation := range s.activations {
		if activation.State != statemachine.Reserved {
			continue
		}
		if activation.CreatedAt.After(before) {
			continue
		}
		out = append(out, activation)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) InsertSmsMessage(ctx context.Context, tx ports.Tx, message ports.SmsMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := message.NumberID + "|" + message.Code
	if s.smsKeys[key] {
		return false, nil
	}
	s.smsKeys[key] = true
	s.smsByNumber[message.NumberID] = append(s.smsByNumber[message.NumberID], message)
	return true, nil
}

func (s *Store) ListSmsMessages(ctx context.Context, numberID string) ([]ports.SmsMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.smsByNumber[numberID]
	out := make([]ports.SmsMessage, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) AppendOutbox(ctx context.Context, tx ports.Tx, envelope ports.EventEnvelope, aggregateType, aggregateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, envelope)
	return nil
}

// ListOutbox is a test helper exposing what the Kernel has queued.
func (s *Store) ListOutbox() []ports.EventEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.EventEnvelope, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *Store) Now() time.Time { return time.Now().UTC() }

func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("act_%d_%d", time.Now().UTC().UnixNano(), s.seq)
}

var (
	_ ports.Repository   = (*Store)(nil)
	_ ports.OutboxWriter = (*Store)(nil)
	_ ports.Clock        = (*Store)(nil)
	_ ports.IDGenerator  = (*Store)(nil)
)
