package postgresadapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/wallet-service/domain/errors"
	"solomon/contexts/number-marketplace/wallet-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) GetAvailableBalance(ctx context.Context, userID string) (float64, error) {
	var row walletBalanceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, r.logError("wallet_repo_get_balance_failed", err, "user_id", strings.TrimSpace(userID))
	}
	return row.AvailableBalance, nil
}

// CreateReservation locks the balance row for the duration of the debit so
// concurrent reserve calls against the same user never oversell funds.
func (r *Repository) CreateReservation(ctx context.Context, input ports.ReserveInput, now time.Time) (ports.LedgerEntry, error) {
	userID := strings.TrimSpace(input.UserID)
	var entry ports.LedgerEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row walletBalanceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = walletBalanceModel{UserID: userID, AvailableBalance: 0}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if row.AvailableBalance < input.Amount {
			return domainerrors.ErrInsufficientBalance
		}

		reservationID := "rsv_" + uuid.NewString()
		row.AvailableBalance -= input.Amount
		if err := tx.Model(&walletBalanceModel{}).
			Where("user_id = ?", userID).
			Update("available_balance", row.AvailableBalance).Error; err != nil {
			return err
		}
		if err := tx.Create(&walletReservationModel{
			ReservationID: reservationID,
			UserID:        userID,
			Amount:        input.Amount,
			Open:          true,
			CreatedAt:     now.UTC(),
		}).Error; err != nil {
			return err
		}

		entry = ports.LedgerEntry{
			EntryID:        uuid.NewString(),
			UserID:         userID,
			Kind:           ports.LedgerEntryReserve,
			Amount:         input.Amount,
			ReservationID:  reservationID,
			Reason:         input.Reason,
			Memo:           input.Memo,
			IdempotencyKey: input.IdempotencyKey,
			CreatedAt:      now.UTC(),
		}
		return tx.Create(ledgerModelFromEntry(entry)).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInsufficientBalance) {
			return ports.LedgerEntry{}, domainerrors.ErrInsufficientBalance
		}
		return ports.LedgerEntry{}, r.logError("wallet_repo_create_reservation_failed", err, "user_id", userID)
	}
	return entry, nil
}

func (r *Repository) CommitReservation(ctx context.Context, input ports.SettleInput, now time.Time) (ports.LedgerEntry, error) {
	return r.settle(ctx, input, now, ports.LedgerEntryCommit, func(tx *gorm.DB, rsv walletReservationModel) error {
		return nil
	})
}

func (r *Repository) RollbackReservation(ctx context.Context, input ports.SettleInput, now time.Time) (ports.LedgerEntry, error) {
	return r.settle(ctx, input, now, ports.LedgerEntryRollback, func(tx *gorm.DB, rsv walletReservationModel) error {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&walletBalanceModel{}).
			Where("user_id = ?", rsv.UserID).
			UpdateColumn("available_balance", gorm.Expr("available_balance + ?", rsv.Amount)).Error
	})
}

func (r *Repository) settle(
	ctx context.Context,
	input ports.SettleInput,
	now time.Time,
	kind ports.LedgerEntryKind,
	refund func(tx *gorm.DB, rsv walletReservationModel) error,
) (ports.LedgerEntry, error) {
	reservationID := strings.TrimSpace(input.ReservationID)
	var entry ports.LedgerEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rsv walletReservationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reservation_id = ?", reservationID).
			First(&rsv).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrReservationNotFound
		}
		if err != nil {
			return err
		}
		if !rsv.Open {
			return domainerrors.ErrReservationClosed
		}

		if err := tx.Model(&walletReservationModel{}).
			Where("reservation_id = ?", reservationID).
			Update("open", false).Error; err != nil {
			return err
		}
		if err := refund(tx, rsv); err != nil {
			return err
		}

		entry = ports.LedgerEntry{
			EntryID:        uuid.NewString(),
			UserID:         rsv.UserID,
			Kind:           kind,
			Amount:         rsv.Amount,
			ReservationID:  rsv.ReservationID,
			IdempotencyKey: input.IdempotencyKey,
			CreatedAt:      now.UTC(),
		}
		return tx.Create(ledgerModelFromEntry(entry)).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrReservationNotFound):
			return ports.LedgerEntry{}, domainerrors.ErrReservationNotFound
		case errors.Is(err, domainerrors.ErrReservationClosed):
			return ports.LedgerEntry{}, domainerrors.ErrReservationClosed
		}
		return ports.LedgerEntry{}, r.logError("wallet_repo_settle_reservation_failed", err, "reservation_id", reservationID)
	}
	return entry, nil
}

func (r *Repository) CreateRefund(ctx context.Context, input ports.RefundInput, now time.Time) (ports.LedgerEntry, error) {
	userID := strings.TrimSpace(input.UserID)
	var entry ports.LedgerEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&walletBalanceModel{}).
			Where("user_id = ?", userID).
			UpdateColumn("available_balance", gorm.Expr("available_balance + ?", input.Amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&walletBalanceModel{UserID: userID, AvailableBalance: input.Amount}).Error; err != nil {
				return err
			}
		}

		entry = ports.LedgerEntry{
			EntryID:        uuid.NewString(),
			UserID:         userID,
			Kind:           ports.LedgerEntryRefund,
			Amount:         input.Amount,
			Reason:         input.Reason,
			Memo:           input.Memo,
			IdempotencyKey: input.IdempotencyKey,
			CreatedAt:      now.UTC(),
		}
		return tx.Create(ledgerModelFromEntry(entry)).Error
	})
	if err != nil {
		return ports.LedgerEntry{}, r.logError("wallet_repo_create_refund_failed", err, "user_id", userID)
	}
	return entry, nil
}

func (r *Repository) ListLedger(ctx context.Context, userID string, limit int) ([]ports.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []walletLedgerModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("wallet_repo_list_ledger_failed", err, "user_id", strings.TrimSpace(userID))
	}
	entries := make([]ports.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntity())
	}
	return entries, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row walletIdempotencyModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("wallet_repo_get_idempotency_failed", err, "idempotency_key", strings.TrimSpace(key))
	}
	if !row.ExpiresAt.UTC().After(now.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             row.IdempotencyKey,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := walletIdempotencyModel{
		IdempotencyKey:  strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return r.logError("wallet_repo_put_idempotency_failed", createResult.Error, "idempotency_key", row.IdempotencyKey)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing walletIdempotencyModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", row.IdempotencyKey).
		First(&existing).Error; err != nil {
		return r.logError("wallet_repo_load_idempotency_failed", err, "idempotency_key", row.IdempotencyKey)
	}
	if existing.RequestHash != row.RequestHash || !bytes.Equal(existing.ResponsePayload, row.ResponsePayload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "number-marketplace/wallet-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("wallet repository operation failed", fields...)
	return err
}

type walletBalanceModel struct {
	UserID           string  `gorm:"column:user_id;primaryKey"`
	AvailableBalance float64 `gorm:"column:available_balance"`
}

func (walletBalanceModel) TableName() string { return "wallet_balances" }

type walletReservationModel struct {
	ReservationID string    `gorm:"column:reservation_id;primaryKey"`
	UserID        string    `gorm:"column:user_id"`
	Amount        float64   `gorm:"column:amount"`
	Open          bool      `gorm:"column:open"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (walletReservationModel) TableName() string { return "wallet_reservations" }

type walletLedgerModel struct {
	EntryID        string    `gorm:"column:entry_id;primaryKey"`
	UserID         string    `gorm:"column:user_id"`
	Kind           string    `gorm:"column:kind"`
	Amount         float64   `gorm:"column:amount"`
	ReservationID  string    `gorm:"column:reservation_id"`
	Reason         string    `gorm:"column:reason"`
	Memo           string    `gorm:"column:memo"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (walletLedgerModel) TableName() string { return "wallet_ledger_entries" }

func ledgerModelFromEntry(entry ports.LedgerEntry) *walletLedgerModel {
	return &walletLedgerModel{
		EntryID:        entry.EntryID,
		UserID:         entry.UserID,
		Kind:           string(entry.Kind),
		Amount:         entry.Amount,
		ReservationID:  entry.ReservationID,
		Reason:         entry.Reason,
		Memo:           entry.Memo,
		IdempotencyKey: entry.IdempotencyKey,
		CreatedAt:      entry.CreatedAt.UTC(),
	}
}

func (m walletLedgerModel) toEntity() ports.LedgerEntry {
	return ports.LedgerEntry{
		EntryID:        m.EntryID,
		UserID:         m.UserID,
		Kind:           ports.LedgerEntryKind(m.Kind),
		Amount:         m.Amount,
		ReservationID:  m.ReservationID,
		Reason:         m.Reason,
		Memo:           m.Memo,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type walletIdempotencyModel struct {
	IdempotencyKey  string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (walletIdempotencyModel) TableName() string { return "wallet_idempotency_records" }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ ports.Repository       = (*Repository)(nil)
	_ ports.IdempotencyStore = (*Repository)(nil)
)
