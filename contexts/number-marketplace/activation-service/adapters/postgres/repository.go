package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	"solomon/contexts/number-marketplace/activation-service/ports"

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

func (r *Repository) CreateActivation(ctx context.Context, input ports.CreateActivationInput, now time.Time) (ports.Activation, error) {
	row := activationModel{
		ActivationID:   input.ActivationID,
		UserID:         input.UserID,
		ProviderID:     input.ProviderID,
		PriceCents:     input.PriceCents,
		State:          string(statemachine.Reserved),
		CreatedAt:      now.UTC(),
		IdempotencyKey: nullableString(input.IdempotencyKey),
		ReservationID:  input.ReservationID,
		TraceID:        input.TraceID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ports.Activation{}, r.logError("activation_repo_create_failed", err, "activation_id", input.ActivationID)
	}
	return row.toEntity(), nil
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (ports.Activation, bool, error) {
	var row activationModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(key)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Activation{}, false, nil
	}
	if err != nil {
		return ports.Activation{}, false, r.logError("activation_repo_find_by_key_failed", err, "idempotency_key", key)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetActivation(ctx context.Context, activationID string) (ports.Activation, error) {
	var row activationModel
	err := r.db.WithContext(ctx).
		Where("activation_id = ?", activationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Activation{}, domainerrors.ErrActivationNotFound
	}
	if err != nil {
		return ports.Activation{}, r.logError("activation_repo_get_failed", err, "activation_id", activationID)
	}
	return row.toEntity(), nil
}

// WithActivationLock locks the activation row for the duration of the
// caller's transition, satisfying the "serialized by the row lock taken
// inside the Kernel's transaction" requirement of spec.md §5.
func (r *Repository) WithActivationLock(ctx context.Context, activationID string, fn func(tx ports.Tx, current ports.Activation) (ports.Activation, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row activationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("activation_id = ?", activationID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrActivationNotFound
		}
		if err != nil {
			return err
		}

		updated, err := fn(tx, row.toEntity())
		if err != nil {
			return err
		}
		return tx.Model(&activationModel{}).
			Where("activation_id = ?", activationID).
			Updates(map[string]any{
				"state":    string(updated.State),
				"trace_id": updated.TraceID,
			}).Error
	})
}

func (r *Repository) AppendHistory(ctx context.Context, tx ports.Tx, entry ports.StateHistoryEntry) error {
	db := r.txOrDefault(tx)
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	row := historyModel{
		HistoryID:    entry.HistoryID,
		ActivationID: entry.ActivationID,
		FromState:    string(entry.FromState),
		ToState:      string(entry.ToState),
		Reason:       entry.Reason,
		Metadata:     metadata,
		TraceID:      entry.TraceID,
		CreatedAt:    entry.CreatedAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("activation_repo_append_history_failed", err, "activation_id", entry.ActivationID)
	}
	return nil
}

func (r *Repository) ListHistory(ctx context.Context, activationID string) ([]ports.StateHistoryEntry, error) {
	var rows []historyModel
	if err := r.db.WithContext(ctx).
		Where("activation_id = ?", activationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("activation_repo_list_history_failed", err, "activation_id", activationID)
	}
	out := make([]ports.StateHistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) CreateNumber(ctx context.Context, tx ports.Tx, number ports.Number) error {
	db := r.txOrDefault(tx)
	if number.Status == "" {
		number.Status = ports.NumberStatusActive
	}
	row := numberModel{
		NumberID:     number.NumberID,
		ActivationID: number.ActivationID,
		PhoneNumber:  number.PhoneNumber,
		UpstreamID:   number.UpstreamID,
		UserID:       number.UserID,
		ServiceName:  number.ServiceName,
		CountryName:  number.CountryName,
		ProviderID:   number.ProviderID,
		PriceCents:   number.PriceCents,
		Status:       string(number.Status),
		ExpiresAt:    number.ExpiresAt.UTC(),
		CreatedAt:    number.CreatedAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("activation_repo_create_number_failed", err, "activation_id", number.ActivationID)
	}
	return nil
}

func (r *Repository) GetNumberByActivation(ctx context.Context, activationID string) (ports.Number, bool, error) {
	var row numberModel
	err := r.db.WithContext(ctx).
		Where("activation_id = ?", activationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Number{}, false, nil
	}
	if err != nil {
		return ports.Number{}, false, r.logError("activation_repo_get_number_failed", err, "activation_id", activationID)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) UpdateNumberStatus(ctx context.Context, tx ports.Tx, numberID string, status ports.NumberStatus, expiresAt time.Time) error {
	db := r.txOrDefault(tx)
	updates := map[string]any{"status": string(status)}
	if !expiresAt.IsZero() {
		updates["expires_at"] = expiresAt.UTC()
	}
	if err := db.WithContext(ctx).
		Model(&numberModel{}).
		Where("number_id = ?", numberID).
		Updates(updates).Error; err != nil {
		return r.logError("activation_repo_update_number_status_failed", err, "number_id", numberID)
	}
	return nil
}

func (r *Repository) ListExpirableNumbers(ctx context.Context, before time.Time, limit int) ([]ports.Number, error) {
	var rows []numberModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", []string{string(ports.NumberStatusActive), string(ports.NumberStatusReceived)}, before.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("activation_repo_list_expirable_numbers_failed", err)
	}
	out := make([]ports.Number, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) ListZombieActivations(ctx context.Context, before time.Time, limit int) ([]ports.Activation, error) {
	var rows []activationModel
	if err := r.db.WithContext(ctx).
		Where("state = ? AND created_at < ?", string(statemachine.Reserved), before.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("activation_repo_list_zombie_activations_failed", err)
	}
	out := make([]ports.Activation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) InsertSmsMessage(ctx context.Context, tx ports.Tx, message ports.SmsMessage) (bool, error) {
	db := r.txOrDefault(tx)
	row := smsMessageModel{
		MessageID:  message.MessageID,
		NumberID:   message.NumberID,
		Code:       message.Code,
		Content:    message.Content,
		ReceivedAt: message.ReceivedAt.UTC(),
	}
	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number_id"}, {Name: "code"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, r.logError("activation_repo_insert_sms_failed", result.Error, "number_id", message.NumberID)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListSmsMessages(ctx context.Context, numberID string) ([]ports.SmsMessage, error) {
	var rows []smsMessageModel
	if err := r.db.WithContext(ctx).
		Where("number_id = ?", numberID).
		Order("received_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("activation_repo_list_sms_failed", err, "number_id", numberID)
	}
	out := make([]ports.SmsMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) txOrDefault(tx ports.Tx) *gorm.DB {
	if db, ok := tx.(*gorm.DB); ok && db != nil {
		return db
	}
	return r.db
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "number-marketplace/activation-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("activation repository operation failed", fields...)
	return err
}

func nullableString(value string) string { return strings.TrimSpace(value) }

type activationModel struct {
	ActivationID   string `gorm:"column:activation_id;primaryKey"`
	UserID         string `gorm:"column:user_id"`
	ProviderID     string `gorm:"column:provider_id"`
	PriceCents     int64  `gorm:"column:price_cents"`
	State          string `gorm:"column:state"`
	UpstreamID     string `gorm:"column:upstream_id"`
	PhoneNumber    string `gorm:"column:phone_number"`
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IdempotencyKey string `gorm:"column:idempotency_key;uniqueIndex"`
	ReservationID  string `gorm:"column:reservation_id"`
	RefundEntryID  string `gorm:"column:refund_entry_id"`
	NumberID       string `gorm:"column:number_id"`
	TraceID        string `gorm:"column:trace_id"`
}

func (activationModel) TableName() string { return "activations" }

func (m activationModel) toEntity() ports.Activation {
	return ports.Activation{
		ActivationID:   m.ActivationID,
		UserID:         m.UserID,
		ProviderID:     m.ProviderID,
		PriceCents:     m.PriceCents,
		State:          statemachine.State(m.State),
		UpstreamID:     m.UpstreamID,
		PhoneNumber:    m.PhoneNumber,
		CreatedAt:      m.CreatedAt.UTC(),
		ExpiresAt:      m.ExpiresAt.UTC(),
		IdempotencyKey: m.IdempotencyKey,
		ReservationID:  m.ReservationID,
		RefundEntryID:  m.RefundEntryID,
		NumberID:       m.NumberID,
		TraceID:        m.TraceID,
	}
}

type historyModel struct {
	HistoryID    string `gorm:"column:history_id;primaryKey"`
	ActivationID string `gorm:"column:activation_id;index"`
	FromState    string `gorm:"column:from_state"`
	ToState      string `gorm:"column:to_state"`
	Reason       string `gorm:"column:reason"`
	Metadata     []byte `gorm:"column:metadata"`
	TraceID      string `gorm:"column:trace_id"`
	CreatedAt    time.Time
}

func (historyModel) TableName() string { return "activation_state_history" }

func (m historyModel) toEntity() ports.StateHistoryEntry {
	var metadata map[string]string
	_ = json.Unmarshal(m.Metadata, &metadata)
	return ports.StateHistoryEntry{
		HistoryID:    m.HistoryID,
		ActivationID: m.ActivationID,
		FromState:    statemachine.State(m.FromState),
		ToState:      statemachine.State(m.ToState),
		Reason:       m.Reason,
		Metadata:     metadata,
		TraceID:      m.TraceID,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type numberModel struct {
	NumberID     string `gorm:"column:number_id;primaryKey"`
	ActivationID string `gorm:"column:activation_id;uniqueIndex"`
	PhoneNumber  string `gorm:"column:phone_number"`
	UpstreamID   string `gorm:"column:upstream_id"`
	UserID       string `gorm:"column:user_id"`
	ServiceName  string `gorm:"column:service_name"`
	CountryName  string `gorm:"column:country_name"`
	ProviderID   string `gorm:"column:provider_id"`
	PriceCents   int64  `gorm:"column:price_cents"`
	Status       string `gorm:"column:status"`
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

func (numberModel) TableName() string { return "numbers" }

func (m numberModel) toEntity() ports.Number {
	return ports.Number{
		NumberID:     m.NumberID,
		ActivationID: m.ActivationID,
		PhoneNumber:  m.PhoneNumber,
		UpstreamID:   m.UpstreamID,
		UserID:       m.UserID,
		ServiceName:  m.ServiceName,
		CountryName:  m.CountryName,
		ProviderID:   m.ProviderID,
		PriceCents:   m.PriceCents,
		Status:       ports.NumberStatus(m.Status),
		ExpiresAt:    m.ExpiresAt.UTC(),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type smsMessageModel struct {
	MessageID  string `gorm:"column:message_id;primaryKey"`
	NumberID   string `gorm:"column:number_id;uniqueIndex:idx_number_code"`
	Code       string `gorm:"column:code;uniqueIndex:idx_number_code"`
	Content    string `gorm:"column:content"`
	ReceivedAt time.Time
}

func (smsMessageModel) TableName() string { return "sms_messages" }

func (m smsMessageModel) toEntity() ports.SmsMessage {
	return ports.SmsMessage{
		MessageID:  m.MessageID,
		NumberID:   m.NumberID,
		Code:       m.Code,
		Content:    m.Content,
		ReceivedAt: m.ReceivedAt.UTC(),
	}
}

var _ ports.Repository = (*Repository)(nil)
