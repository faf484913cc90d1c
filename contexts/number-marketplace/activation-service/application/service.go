package application

import (
	"context"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	"solomon/contexts/number-marketplace/activation-service/ports"
)

const (
	baseNumberTimeout     = 10 * time.Minute
	extendedNumberTimeout = 15 * time.Minute
	zombieReservationAge  = 10 * time.Minute
)

// Service composes the Kernel with the activation lifecycle operations that
// sit above a single transition: creation, number binding, SMS ingestion,
// and the read models the Poll Manager and Reaper need to find due work.
type Service struct {
	Kernel Kernel
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
}

// CreateActivation seeds a RESERVED activation. Idempotent on
// IdempotencyKey: a repeated create for the same key returns the existing
// activation without side effects (spec.md §4.3 step 2).
func (s Service) CreateActivation(ctx context.Context, input ports.CreateActivationInput) (ports.Activation, error) {
	if strings.TrimSpace(input.UserID) == "" || strings.TrimSpace(input.ProviderID) == "" || input.PriceCents <= 0 {
		return ports.Activation{}, domainerrors.ErrInvalidInput
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" {
		existing, found, err := s.Repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return ports.Activation{}, err
		}
		if found {
			return existing, nil
		}
	}
	if strings.TrimSpace(input.ActivationID) == "" {
		input.ActivationID = s.newID()
	}
	return s.Repo.CreateActivation(ctx, input, s.now())
}

func (s Service) GetActivation(ctx context.Context, activationID string) (ports.Activation, error) {
	return s.Repo.GetActivation(ctx, activationID)
}

func (s Service) History(ctx context.Context, activationID string) ([]ports.StateHistoryEntry, error) {
	return s.Repo.ListHistory(ctx, activationID)
}

// BindNumber attaches the acquired upstream asset to the activation inside
// the RESERVED→ACTIVE transition (spec.md §4.3 step 4). It is the caller's
// responsibility to have already transitioned the activation; BindNumber
// only persists the Number row and the denormalized fields on Activation.
func (s Service) BindNumber(ctx context.Context, tx ports.Tx, number ports.Number) error {
	if number.NumberID == "" {
		number.NumberID = s.newID()
	}
	if number.ExpiresAt.IsZero() {
		number.ExpiresAt = s.now().Add(baseNumberTimeout)
	}
	return s.Repo.CreateNumber(ctx, tx, number)
}

// IngestSms records one inbound message. Ingestion is idempotent on
// (numberId, code); a duplicate is silently accepted without re-triggering
// the RECEIVED transition or expiry extension.
func (s Service) IngestSms(ctx context.Context, tx ports.Tx, numberID, code, content string) (fresh bool, err error) {
	numberID = strings.TrimSpace(numberID)
	code = strings.TrimSpace(code)
	if numberID == "" || code == "" {
		return false, domainerrors.ErrInvalidInput
	}
	message := ports.SmsMessage{
		MessageID:  s.newID(),
		NumberID:   numberID,
		Code:       code,
		Content:    content,
		ReceivedAt: s.now(),
	}
	return s.Repo.InsertSmsMessage(ctx, tx, message)
}

func (s Service) ListSmsMessages(ctx context.Context, numberID string) ([]ports.SmsMessage, error) {
	return s.Repo.ListSmsMessages(ctx, numberID)
}

// ExtendNumberExpiry pushes a number's expiry to the extended timeout on the
// first new message for its activation (spec.md §4.5.2).
func (s Service) ExtendNumberExpiry(ctx context.Context, tx ports.Tx, numberID string) error {
	return s.Repo.UpdateNumberStatus(ctx, tx, numberID, ports.NumberStatusReceived, s.now().Add(extendedNumberTimeout))
}

func (s Service) GetNumberByActivation(ctx context.Context, activationID string) (ports.Number, bool, error) {
	return s.Repo.GetNumberByActivation(ctx, activationID)
}

// ListExpirableNumbers surfaces the reaper's candidate set for sweep #2.
func (s Service) ListExpirableNumbers(ctx context.Context, limit int) ([]ports.Number, error) {
	return s.Repo.ListExpirableNumbers(ctx, s.now(), limit)
}

// MarkNumberCompleted closes out a number that won the late-SMS race against
// its own expiry (spec.md §4.7 #2).
func (s Service) MarkNumberCompleted(ctx context.Context, numberID string) error {
	return s.Repo.UpdateNumberStatus(ctx, nil, numberID, ports.NumberStatusCompleted, s.now())
}

// MarkNumberExpired closes out a number with no SMS by the time the reaper
// swept it (spec.md §4.7 #2).
func (s Service) MarkNumberExpired(ctx context.Context, numberID string) error {
	return s.Repo.UpdateNumberStatus(ctx, nil, numberID, ports.NumberStatusExpired, s.now())
}

// ListZombieActivations surfaces activations stuck in RESERVED past the
// zombie-fund window for the reaper's sweep #3.
func (s Service) ListZombieActivations(ctx context.Context, limit int) ([]ports.Activation, error) {
	return s.Repo.ListZombieActivations(ctx, s.now().Add(-zombieReservationAge), limit)
}

func (s Service) Refundable(state statemachine.State) bool { return statemachine.Refundable(state) }
func (s Service) Terminal(state statemachine.State) bool   { return statemachine.Terminal(state) }

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) newID() string {
	if s.IDGen == nil {
		return "act_" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return s.IDGen.NewID()
}
