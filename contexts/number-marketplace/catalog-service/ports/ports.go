package ports

import (
	"context"
	"time"

	contractsv1 "solomon/contracts/gen/events/v1"
)

// EventEnvelope is the shared versioned envelope every context's outbox
// payload is wrapped in.
type EventEnvelope = contractsv1.Envelope

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Offer is the flattened (provider, country, service, operator) projection
// the resolver and the admin aggregation views read.
type Offer struct {
	OfferID             string
	ProviderID          string
	ProviderServiceCode string
	ProviderCountryCode string
	CanonicalService    string
	CanonicalCountry    string
	OperatorID          string
	PriceCents          int64
	Stock               int
	Active              bool
	UpdatedAt           time.Time
}

type OfferFilter struct {
	CanonicalService string
	CanonicalCountry string
	ProviderID       string
	OperatorID       string
}

// ResolveInput is the purchase-time input the catalog resolves against the
// offer index: free-text or provider-native inputs, resolved to the
// cheapest in-stock active offer.
type ResolveInput struct {
	ServiceInput string
	CountryInput string
	OperatorID   string
	ProviderID   string
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type OfferReservation struct {
	ReservationID string
	OfferID       string
	Quantity      int
	Status        ReservationStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// AggregationBucket is one group in the admin aggregation projection:
// offers grouped by canonical country or service.
type AggregationBucket struct {
	Key              string
	OfferCount       int
	TotalStock       int
	MinPriceCents    int64
	MaxPriceCents    int64
	Providers        []string
	FreshestUpdateAt time.Time
}

type Repository interface {
	ListOffers(ctx context.Context, filter OfferFilter) ([]Offer, error)
	GetOffer(ctx context.Context, offerID string) (Offer, error)
	UpsertOffer(ctx context.Context, offer Offer) error
	SearchOffers(ctx context.Context, query string, limit int) ([]Offer, error)

	CreateReservation(ctx context.Context, offerID string, quantity int, ttl time.Duration, now time.Time) (OfferReservation, error)
	ConfirmReservation(ctx context.Context, reservationID string, now time.Time) (OfferReservation, error)
	CancelReservation(ctx context.Context, reservationID string, now time.Time) (OfferReservation, error)
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]OfferReservation, error)
	ExpireReservation(ctx context.Context, reservationID string, now time.Time) (OfferReservation, error)

	// PurgeReservations deletes EXPIRED/CANCELLED reservations older than
	// olderThan and reports how many rows were removed. Backs the reaper's
	// housekeeping sweep (spec.md §4.7 #4).
	PurgeReservations(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// OutboxWriter lets the catalog service queue offer.created / offer.updated
// projections for the search adapter without depending on it directly.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// SearchIndex is the derived, search-backed offer catalog (spec's "Search
// index" collaborator): upsert/delete/search with a task-id async model.
type SearchIndex interface {
	UpsertOffer(ctx context.Context, offer Offer) (taskID string, err error)
	DeleteOffer(ctx context.Context, offerID string) (taskID string, err error)
	Search(ctx context.Context, query string, limit int) ([]Offer, error)
}
