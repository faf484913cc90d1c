package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/catalog-service/domain/errors"
	"solomon/contexts/number-marketplace/catalog-service/ports"

	"github.com/google/uuid"
)

// Service is the catalog/offer-resolution collaborator (spec.md §4.8): it
// resolves purchase requests to the cheapest matching offer, holds soft
// stock reservations against it, and derives admin aggregation views.
type Service struct {
	Repo           ports.Repository
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	ReservationTTL time.Duration
	Logger         *slog.Logger
}

// Resolve implements the four resolution strategies of spec.md §4.8, tried
// in order, and returns the cheapest in-stock active offer that matches.
func (s Service) Resolve(ctx context.Context, input ports.ResolveInput) (ports.Offer, error) {
	canonicalService := strings.TrimSpace(input.ServiceInput)
	canonicalCountry := strings.TrimSpace(input.CountryInput)
	if canonicalService == "" || canonicalCountry == "" {
		return ports.Offer{}, domainerrors.ErrInvalidRequest
	}

	candidates, err := s.Repo.ListOffers(ctx, ports.OfferFilter{
		ProviderID: input.ProviderID,
		OperatorID: input.OperatorID,
	})
	if err != nil {
		return ports.Offer{}, err
	}

	strategies := []matcher{matchCanonicalExact, matchProviderServiceCode, matchCanonicalServiceOnly, matchFreeText}
	for _, match := range strategies {
		matches := filterOffers(candidates, canonicalService, canonicalCountry, match)
		if best, ok := cheapestInStock(matches); ok {
			return best, nil
		}
	}
	return ports.Offer{}, domainerrors.ErrNoMatchingOffer
}

type matcher func(offer ports.Offer, service, country string) bool

func filterOffers(offers []ports.Offer, service, country string, match matcher) []ports.Offer {
	matched := make([]ports.Offer, 0, len(offers))
	for _, offer := range offers {
		if match(offer, service, country) {
			matched = append(matched, offer)
		}
	}
	return matched
}

func matchCanonicalExact(offer ports.Offer, service, country string) bool {
	return equalFold(offer.CanonicalService, service) && equalFold(offer.CanonicalCountry, country)
}

func matchProviderServiceCode(offer ports.Offer, service, country string) bool {
	return equalFold(offer.ProviderServiceCode, service) && matchCountry(offer, country)
}

func matchCanonicalServiceOnly(offer ports.Offer, service, country string) bool {
	return equalFold(offer.CanonicalService, service) && matchCountry(offer, country)
}

func matchFreeText(offer ports.Offer, service, country string) bool {
	return strings.Contains(strings.ToLower(offer.CanonicalService), strings.ToLower(service)) && matchCountry(offer, country)
}

// matchCountry prefers exact normalized name match over a provider numeric code.
func matchCountry(offer ports.Offer, country string) bool {
	if equalFold(offer.CanonicalCountry, country) {
		return true
	}
	if _, err := strconv.Atoi(country); err == nil {
		return offer.ProviderCountryCode == country
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func cheapestInStock(offers []ports.Offer) (ports.Offer, bool) {
	var best ports.Offer
	found := false
	for _, offer := range offers {
		if !offer.Active || offer.Stock <= 0 {
			continue
		}
		if !found || offer.PriceCents < best.PriceCents {
			best = offer
			found = true
		}
	}
	return best, found
}

func (s Service) GetOffer(ctx context.Context, offerID string) (ports.Offer, error) {
	return s.Repo.GetOffer(ctx, offerID)
}

func (s Service) ListOffers(ctx context.Context, filter ports.OfferFilter) ([]ports.Offer, error) {
	return s.Repo.ListOffers(ctx, filter)
}

func (s Service) SearchOffers(ctx context.Context, query string, limit int) ([]ports.Offer, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.Repo.SearchOffers(ctx, query, limit)
}

// Reserve holds soft stock against an offer for the duration of a purchase
// attempt. The caller is responsible for confirming or cancelling it.
func (s Service) Reserve(ctx context.Context, offerID string, quantity int) (ports.OfferReservation, error) {
	if strings.TrimSpace(offerID) == "" || quantity <= 0 {
		return ports.OfferReservation{}, domainerrors.ErrInvalidRequest
	}
	reservation, err := s.Repo.CreateReservation(ctx, offerID, quantity, s.reservationTTL(), s.now())
	if err != nil {
		return ports.OfferReservation{}, err
	}
	ResolveLogger(s.Logger).Info("offer reservation created",
		"event", "offer_reservation_created",
		"module", "number-marketplace/catalog-service",
		"layer", "application",
		"offer_id", offerID,
		"reservation_id", reservation.ReservationID,
	)
	return reservation, nil
}

func (s Service) ConfirmReservation(ctx context.Context, reservationID string) (ports.OfferReservation, error) {
	return s.Repo.ConfirmReservation(ctx, reservationID, s.now())
}

func (s Service) CancelReservation(ctx context.Context, reservationID string) (ports.OfferReservation, error) {
	reservation, err := s.Repo.CancelReservation(ctx, reservationID, s.now())
	if err != nil {
		return ports.OfferReservation{}, err
	}
	if err := s.publishOfferUpdated(ctx, reservation.OfferID); err != nil {
		return ports.OfferReservation{}, err
	}
	return reservation, nil
}

// ExpireDueReservations is the catalog half of the reaper's first sweep
// (spec.md §4.7 #1): PENDING reservations past expiry restore stock and
// queue an offer.updated projection.
func (s Service) ExpireDueReservations(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.Repo.ListExpiredReservations(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, reservation := range due {
		if _, err := s.Repo.ExpireReservation(ctx, reservation.ReservationID, s.now()); err != nil {
			return expired, err
		}
		if err := s.publishOfferUpdated(ctx, reservation.OfferID); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// PurgeReservations backs the reaper's housekeeping sweep (spec.md §4.7 #4).
func (s Service) PurgeReservations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.Repo.PurgeReservations(ctx, olderThan, limit)
}

func (s Service) publishOfferUpdated(ctx context.Context, offerID string) error {
	if s.Outbox == nil {
		return nil
	}
	offer, err := s.Repo.GetOffer(ctx, offerID)
	if err != nil {
		return err
	}
	return s.emitOfferEvent(ctx, "offer.updated", offer)
}

// UpsertOffer writes the provider-sync projection and queues the outbox
// event the search adapter projects from (spec.md §4.6 offer.created |
// offer.updated dispatch).
func (s Service) UpsertOffer(ctx context.Context, offer ports.Offer) error {
	_, err := s.Repo.GetOffer(ctx, offer.OfferID)
	eventType := "offer.updated"
	if err != nil {
		eventType = "offer.created"
	}

	offer.UpdatedAt = s.now()
	if err := s.Repo.UpsertOffer(ctx, offer); err != nil {
		return err
	}
	return s.emitOfferEvent(ctx, eventType, offer)
}

func (s Service) emitOfferEvent(ctx context.Context, eventType string, offer ports.Offer) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	id, err := s.newID(ctx)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          id,
		EventType:        eventType,
		OccurredAt:       s.now(),
		SourceService:    "number-marketplace.catalog-service",
		SchemaVersion:    1,
		PartitionKeyPath: "offer_id",
		PartitionKey:     offer.OfferID,
		Data:             payload,
	})
}

// Aggregate derives the admin aggregation projection (spec.md §4.8 last
// paragraph): offers grouped by canonical country or service, with
// per-provider breakdown, price range, stock, and freshness.
func (s Service) Aggregate(ctx context.Context, groupBy string) ([]ports.AggregationBucket, error) {
	offers, err := s.Repo.ListOffers(ctx, ports.OfferFilter{})
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*ports.AggregationBucket)
	providerSets := make(map[string]map[string]struct{})
	for _, offer := range offers {
		key := offer.CanonicalCountry
		if strings.EqualFold(groupBy, "service") {
			key = offer.CanonicalService
		}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &ports.AggregationBucket{Key: key, MinPriceCents: offer.PriceCents}
			buckets[key] = bucket
			providerSets[key] = make(map[string]struct{})
		}
		bucket.OfferCount++
		bucket.TotalStock += offer.Stock
		if offer.PriceCents < bucket.MinPriceCents {
			bucket.MinPriceCents = offer.PriceCents
		}
		if offer.PriceCents > bucket.MaxPriceCents {
			bucket.MaxPriceCents = offer.PriceCents
		}
		if offer.UpdatedAt.After(bucket.FreshestUpdateAt) {
			bucket.FreshestUpdateAt = offer.UpdatedAt
		}
		providerSets[key][offer.ProviderID] = struct{}{}
	}

	result := make([]ports.AggregationBucket, 0, len(buckets))
	for key, bucket := range buckets {
		providers := make([]string, 0, len(providerSets[key]))
		for providerID := range providerSets[key] {
			providers = append(providers, providerID)
		}
		sort.Strings(providers)
		bucket.Providers = providers
		result = append(result, *bucket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGen == nil {
		return uuid.NewString(), nil
	}
	return s.IDGen.NewID(ctx)
}

func (s Service) reservationTTL() time.Duration {
	if s.ReservationTTL <= 0 {
		return 5 * time.Minute
	}
	return s.ReservationTTL
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
