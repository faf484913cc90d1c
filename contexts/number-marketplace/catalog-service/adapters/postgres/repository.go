package postgresadapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/catalog-service/domain/errors"
	"solomon/contexts/number-marketplace/catalog-service/ports"

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

func (r *Repository) ListOffers(ctx context.Context, filter ports.OfferFilter) ([]ports.Offer, error) {
	query := r.db.WithContext(ctx).Model(&offerModel{})
	if filter.ProviderID != "" {
		query = query.Where("provider_id = ?", filter.ProviderID)
	}
	if filter.OperatorID != "" {
		query = query.Where("operator_id = ?", filter.OperatorID)
	}
	if filter.CanonicalService != "" {
		query = query.Where("canonical_service ILIKE ?", filter.CanonicalService)
	}
	if filter.CanonicalCountry != "" {
		query = query.Where("canonical_country ILIKE ?", filter.CanonicalCountry)
	}

	var rows []offerModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("catalog_repo_list_offers_failed", err)
	}
	offers := make([]ports.Offer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, row.toEntity())
	}
	return offers, nil
}

func (r *Repository) GetOffer(ctx context.Context, offerID string) (ports.Offer, error) {
	var row offerModel
	err := r.db.WithContext(ctx).Where("offer_id = ?", strings.TrimSpace(offerID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Offer{}, domainerrors.ErrOfferNotFound
		}
		return ports.Offer{}, r.logError("catalog_repo_get_offer_failed", err, "offer_id", offerID)
	}
	return row.toEntity(), nil
}

func (r *Repository) UpsertOffer(ctx context.Context, offer ports.Offer) error {
	row := offerModelFromEntity(offer)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "offer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_service_code", "provider_country_code", "canonical_service",
			"canonical_country", "operator_id", "price_cents", "stock", "active", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return r.logError("catalog_repo_upsert_offer_failed", err, "offer_id", offer.OfferID)
	}
	return nil
}

func (r *Repository) SearchOffers(ctx context.Context, query string, limit int) ([]ports.Offer, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + strings.TrimSpace(query) + "%"
	var rows []offerModel
	if err := r.db.WithContext(ctx).
		Where("canonical_service ILIKE ? OR canonical_country ILIKE ?", like, like).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("catalog_repo_search_offers_failed", err)
	}
	offers := make([]ports.Offer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, row.toEntity())
	}
	return offers, nil
}

func (r *Repository) CreateReservation(ctx context.Context, offerID string, quantity int, ttl time.Duration, now time.Time) (ports.OfferReservation, error) {
	var reservation ports.OfferReservation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offer offerModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("offer_id = ?", strings.TrimSpace(offerID)).
			First(&offer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOfferNotFound
			}
			return err
		}
		if offer.Stock < quantity {
			return domainerrors.ErrInsufficientStock
		}
		if err := tx.Model(&offerModel{}).
			Where("offer_id = ?", offer.OfferID).
			Update("stock", offer.Stock-quantity).Error; err != nil {
			return err
		}

		row := reservationModel{
			ReservationID: uuid.NewString(),
			OfferID:       offerID,
			Quantity:      quantity,
			Status:        string(ports.ReservationPending),
			ExpiresAt:     now.Add(ttl).UTC(),
			CreatedAt:     now.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		reservation = row.toEntity()
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrOfferNotFound) || errors.Is(err, domainerrors.ErrInsufficientStock) {
			return ports.OfferReservation{}, err
		}
		return ports.OfferReservation{}, r.logError("catalog_repo_create_reservation_failed", err, "offer_id", offerID)
	}
	return reservation, nil
}

func (r *Repository) ConfirmReservation(ctx context.Context, reservationID string, now time.Time) (ports.OfferReservation, error) {
	return r.transitionReservation(ctx, reservationID, ports.ReservationConfirmed, nil)
}

func (r *Repository) CancelReservation(ctx context.Context, reservationID string, now time.Time) (ports.OfferReservation, error) {
	return r.transitionReservation(ctx, reservationID, ports.ReservationCancelled, r.restoreStock)
}

func (r *Repository) ExpireReservation(ctx context.Context, reservationID string, now time.Time) (ports.OfferReservation, error) {
	return r.transitionReservation(ctx, reservationID, ports.ReservationExpired, r.restoreStock)
}

func (r *Repository) restoreStock(tx *gorm.DB, reservation reservationModel) error {
	return tx.Model(&offerModel{}).
		Where("offer_id = ?", reservation.OfferID).
		UpdateColumn("stock", gorm.Expr("stock + ?", reservation.Quantity)).Error
}

func (r *Repository) transitionReservation(
	ctx context.Context,
	reservationID string,
	target ports.ReservationStatus,
	onRelease func(tx *gorm.DB, reservation reservationModel) error,
) (ports.OfferReservation, error) {
	var result ports.OfferReservation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row reservationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reservation_id = ?", strings.TrimSpace(reservationID)).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrReservationNotFound
			}
			return err
		}
		if row.Status != string(ports.ReservationPending) {
			return domainerrors.ErrReservationNotPending
		}
		if err := tx.Model(&reservationModel{}).
			Where("reservation_id = ?", row.ReservationID).
			Update("status", string(target)).Error; err != nil {
			return err
		}
		if onRelease != nil {
			if err := onRelease(tx, row); err != nil {
				return err
			}
		}
		row.Status = string(target)
		result = row.toEntity()
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrReservationNotFound) || errors.Is(err, domainerrors.ErrReservationNotPending) {
			return ports.OfferReservation{}, err
		}
		return ports.OfferReservation{}, r.logError("catalog_repo_transition_reservation_failed", err, "reservation_id", reservationID)
	}
	return result, nil
}

func (r *Repository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]ports.OfferReservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []reservationModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(ports.ReservationPending)).
		Where("expires_at < ?", now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("catalog_repo_list_expired_reservations_failed", err)
	}
	items := make([]ports.OfferReservation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) PurgeReservations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&reservationModel{}).
		Where("status IN ?", []string{string(ports.ReservationExpired), string(ports.ReservationCancelled)}).
		Where("created_at <= ?", olderThan.UTC()).
		Limit(limit).
		Pluck("reservation_id", &ids).Error; err != nil {
		return 0, r.logError("catalog_repo_purge_reservations_failed", err)
	}
	result := r.db.WithContext(ctx).Where("reservation_id IN ?", ids).Delete(&reservationModel{})
	if result.Error != nil {
		return 0, r.logError("catalog_repo_purge_reservations_failed", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      append([]byte(nil), envelope.Data...),
		Status:       "pending",
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	createResult := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return r.logError("catalog_repo_append_outbox_failed", createResult.Error, "outbox_id", row.OutboxID)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).Where("outbox_id = ?", row.OutboxID).First(&existing).Error; err != nil {
		return r.logError("catalog_repo_load_outbox_failed", err, "outbox_id", row.OutboxID)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrInvalidRequest
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields, "event", event, "module", "number-marketplace/catalog-service", "layer", "adapter", "error", err.Error())
	fields = append(fields, attrs...)
	r.logger.Error("catalog repository operation failed", fields...)
	return err
}

type offerModel struct {
	OfferID             string    `gorm:"column:offer_id;primaryKey"`
	ProviderID          string    `gorm:"column:provider_id"`
	ProviderServiceCode string    `gorm:"column:provider_service_code"`
	ProviderCountryCode string    `gorm:"column:provider_country_code"`
	CanonicalService    string    `gorm:"column:canonical_service"`
	CanonicalCountry    string    `gorm:"column:canonical_country"`
	OperatorID          string    `gorm:"column:operator_id"`
	PriceCents          int64     `gorm:"column:price_cents"`
	Stock               int       `gorm:"column:stock"`
	Active              bool      `gorm:"column:active"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (offerModel) TableName() string { return "catalog_offers" }

func offerModelFromEntity(offer ports.Offer) offerModel {
	return offerModel{
		OfferID:             offer.OfferID,
		ProviderID:          offer.ProviderID,
		ProviderServiceCode: offer.ProviderServiceCode,
		ProviderCountryCode: offer.ProviderCountryCode,
		CanonicalService:    offer.CanonicalService,
		CanonicalCountry:    offer.CanonicalCountry,
		OperatorID:          offer.OperatorID,
		PriceCents:          offer.PriceCents,
		Stock:               offer.Stock,
		Active:              offer.Active,
		UpdatedAt:           offer.UpdatedAt.UTC(),
	}
}

func (m offerModel) toEntity() ports.Offer {
	return ports.Offer{
		OfferID:             m.OfferID,
		ProviderID:          m.ProviderID,
		ProviderServiceCode: m.ProviderServiceCode,
		ProviderCountryCode: m.ProviderCountryCode,
		CanonicalService:    m.CanonicalService,
		CanonicalCountry:    m.CanonicalCountry,
		OperatorID:          m.OperatorID,
		PriceCents:          m.PriceCents,
		Stock:               m.Stock,
		Active:              m.Active,
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

type reservationModel struct {
	ReservationID string    `gorm:"column:reservation_id;primaryKey"`
	OfferID       string    `gorm:"column:offer_id"`
	Quantity      int       `gorm:"column:quantity"`
	Status        string    `gorm:"column:status"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (reservationModel) TableName() string { return "catalog_offer_reservations" }

func (m reservationModel) toEntity() ports.OfferReservation {
	return ports.OfferReservation{
		ReservationID: m.ReservationID,
		OfferID:       m.OfferID,
		Quantity:      m.Quantity,
		Status:        ports.ReservationStatus(m.Status),
		ExpiresAt:     m.ExpiresAt.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string    `gorm:"column:outbox_id;primaryKey"`
	EventType    string    `gorm:"column:event_type"`
	PartitionKey string    `gorm:"column:partition_key"`
	Payload      []byte    `gorm:"column:payload"`
	Status       string    `gorm:"column:status"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (outboxModel) TableName() string { return "catalog_outbox" }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ ports.Repository   = (*Repository)(nil)
	_ ports.OutboxWriter = (*Repository)(nil)
)
