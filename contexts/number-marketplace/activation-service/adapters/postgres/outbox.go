package postgresadapter

import (
	"bytes"
	"context"
	"time"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	"solomon/contexts/number-marketplace/activation-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// AppendOutbox satisfies ports.OutboxWriter. The row lands in this
// service's own outbox_events table; nothing in the module claims or
// dispatches those rows (internal/shared/outbox reads only its own Store).
func (r *Repository) AppendOutbox(ctx context.Context, tx ports.Tx, envelope ports.EventEnvelope, aggregateType, aggregateID string) error {
	db := r.txOrDefault(tx)

	outboxID := envelope.EventID
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	row := outboxEventModel{
		OutboxID:      outboxID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     envelope.EventType,
		Payload:       append([]byte(nil), envelope.Data...),
		Status:        "PENDING",
		RetryCount:    0,
		CreatedAt:     time.Now().UTC(),
	}

	createResult := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return r.logError("activation_repo_append_outbox_failed", createResult.Error, "outbox_id", outboxID)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxEventModel
	if err := db.WithContext(ctx).Where("outbox_id = ?", outboxID).First(&existing).Error; err != nil {
		return r.logError("activation_repo_load_outbox_failed", err, "outbox_id", outboxID)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrInvalidInput
	}
	return nil
}

type outboxEventModel struct {
	OutboxID      string `gorm:"column:outbox_id;primaryKey"`
	AggregateType string `gorm:"column:aggregate_type"`
	AggregateID   string `gorm:"column:aggregate_id;index"`
	EventType     string `gorm:"column:event_type"`
	Payload       []byte `gorm:"column:payload"`
	Status        string `gorm:"column:status"`
	RetryCount    int    `gorm:"column:retry_count"`
	LastError     string `gorm:"column:last_error"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (outboxEventModel) TableName() string { return "outbox_events" }

var _ ports.OutboxWriter = (*Repository)(nil)
