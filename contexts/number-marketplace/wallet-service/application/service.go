package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/wallet-service/domain/errors"
	"solomon/contexts/number-marketplace/wallet-service/ports"
)

// Service is the wallet gateway collaborator (spec.md §6): reserve, commit,
// rollback, and refund, each idempotent on the caller-supplied key.
type Service struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (s Service) Reserve(ctx context.Context, input ports.ReserveInput) (ports.LedgerEntry, error) {
	if strings.TrimSpace(input.UserID) == "" || input.Amount <= 0 {
		return ports.LedgerEntry{}, domainerrors.ErrInvalidInput
	}
	requestHash := hashPayload(map[string]any{
		"op":      "reserve",
		"user_id": strings.TrimSpace(input.UserID),
		"amount":  input.Amount,
		"reason":  input.Reason,
	})
	return s.runIdempotent(ctx, input.IdempotencyKey, requestHash, func(now time.Time) (ports.LedgerEntry, error) {
		balance, err := s.Repo.GetAvailableBalance(ctx, input.UserID)
		if err != nil {
			return ports.LedgerEntry{}, err
		}
		if balance < input.Amount {
			return ports.LedgerEntry{}, domainerrors.ErrInsufficientBalance
		}
		return s.Repo.CreateReservation(ctx, input, now)
	})
}

func (s Service) Commit(ctx context.Context, input ports.SettleInput) (ports.LedgerEntry, error) {
	if strings.TrimSpace(input.ReservationID) == "" {
		return ports.LedgerEntry{}, domainerrors.ErrInvalidInput
	}
	requestHash := hashPayload(map[string]any{"op": "commit", "reservation_id": input.ReservationID})
	return s.runIdempotent(ctx, input.IdempotencyKey, requestHash, func(now time.Time) (ports.LedgerEntry, error) {
		return s.Repo.CommitReservation(ctx, input, now)
	})
}

func (s Service) Rollback(ctx context.Context, input ports.SettleInput) (ports.LedgerEntry, error) {
	if strings.TrimSpace(input.ReservationID) == "" {
		return ports.LedgerEntry{}, domainerrors.ErrInvalidInput
	}
	requestHash := hashPayload(map[string]any{"op": "rollback", "reservation_id": input.ReservationID})
	return s.runIdempotent(ctx, input.IdempotencyKey, requestHash, func(now time.Time) (ports.LedgerEntry, error) {
		return s.Repo.RollbackReservation(ctx, input, now)
	})
}

func (s Service) Refund(ctx context.Context, input ports.RefundInput) (ports.LedgerEntry, error) {
	if strings.TrimSpace(input.UserID) == "" || input.Amount <= 0 {
		return ports.LedgerEntry{}, domainerrors.ErrInvalidInput
	}
	requestHash := hashPayload(map[string]any{
		"op":      "refund",
		"user_id": strings.TrimSpace(input.UserID),
		"amount":  input.Amount,
		"reason":  input.Reason,
	})
	return s.runIdempotent(ctx, input.IdempotencyKey, requestHash, func(now time.Time) (ports.LedgerEntry, error) {
		return s.Repo.CreateRefund(ctx, input, now)
	})
}

func (s Service) Balance(ctx context.Context, userID string) (float64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, domainerrors.ErrInvalidInput
	}
	return s.Repo.GetAvailableBalance(ctx, userID)
}

func (s Service) History(ctx context.Context, userID string, limit int) ([]ports.LedgerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}
	return s.Repo.ListLedger(ctx, userID, limit)
}

func (s Service) runIdempotent(
	ctx context.Context,
	idempotencyKey string,
	requestHash string,
	exec func(now time.Time) (ports.LedgerEntry, error),
) (ports.LedgerEntry, error) {
	now := s.now()
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		// Callers without an idempotency key (e.g. internal reaper sweeps) are
		// not replayed against; every call executes.
		return exec(now)
	}

	record, found, err := s.Idempotency.GetRecord(ctx, key, now)
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	if found {
		if record.RequestHash != requestHash {
			return ports.LedgerEntry{}, domainerrors.ErrIdempotencyConflict
		}
		var replayed ports.LedgerEntry
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return ports.LedgerEntry{}, err
		}
		return replayed, nil
	}

	entry, err := exec(now)
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	if err := s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(s.idempotencyTTL()),
	}); err != nil {
		return ports.LedgerEntry{}, err
	}

	ResolveLogger(s.Logger).Info("wallet ledger entry recorded",
		"event", "wallet_ledger_entry_recorded",
		"module", "number-marketplace/wallet-service",
		"layer", "application",
		"entry_id", entry.EntryID,
		"kind", string(entry.Kind),
		"user_id", entry.UserID,
		"amount", entry.Amount,
	)
	return entry, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// ResolveLogger returns the provided logger or falls back to slog default.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
