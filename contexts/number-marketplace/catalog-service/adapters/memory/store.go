package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domainerrors "solomon/contexts/number-marketplace/catalog-service/domain/errors"
	"solomon/contexts/number-marketplace/catalog-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.Mutex
	offers       map[string]ports.Offer
	reservations map[string]ports.OfferReservation
	outbox       []ports.EventEnvelope
}

func NewStore() *Store {
	return &Store{
		offers:       make(map[string]ports.Offer),
		reservations: make(map[string]ports.OfferReservation),
	}
}

// Seed inserts or replaces an offer. Test and bootstrap helper.
func (s *Store) Seed(offer ports.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[offer.OfferID] = offer
}

func (s *Store) ListOffers(_ context.Context, filter ports.OfferFilter) ([]ports.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]ports.Offer, 0, len(s.offers))
	for _, offer := range s.offers {
		if filter.ProviderID != "" && offer.ProviderID != filter.ProviderID {
			continue
		}
		if filter.OperatorID != "" && offer.OperatorID != filter.OperatorID {
			continue
		}
		if filter.CanonicalService != "" && !strings.EqualFold(offer.CanonicalService, filter.CanonicalService) {
			continue
		}
		if filter.CanonicalCountry != "" && !strings.EqualFold(offer.CanonicalCountry, filter.CanonicalCountry) {
			continue
		}
		items = append(items, offer)
	}
	return items, nil
}

func (s *Store) GetOffer(_ context.Context, offerID string) (ports.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[strings.TrimSpace(offerID)]
	if !ok {
		return ports.Offer{}, domainerrors.ErrOfferNotFound
	}
	return offer, nil
}

func (s *Store) UpsertOffer(_ context.Context, offer ports.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(offer.OfferID) == "" {
		return domainerrors.ErrInvalidRequest
	}
	s.offers[offer.OfferID] = offer
	return nil
}

func (s *Store) SearchOffers(_ context.Context, query string, limit int) ([]ports.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	items := make([]ports.Offer, 0, limit)
	for _, offer := range s.offers {
		if query != "" &&
			!strings.Contains(strings.ToLower(offer.CanonicalService), query) &&
			!strings.Contains(strings.ToLower(offer.CanonicalCountry), query) {
			continue
		}
		items = append(items, offer)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) CreateReservation(_ context.Context, offerID string, quantity int, ttl time.Duration, now time.Time) (ports.OfferReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[strings.TrimSpace(offerID)]
	if !ok {
		return ports.OfferReservation{}, domainerrors.ErrOfferNotFound
	}
	if offer.Stock < quantity {
		return ports.OfferReservation{}, domainerrors.ErrInsufficientStock
	}
	offer.Stock -= quantity
	s.offers[offer.OfferID] = offer

	reservation := ports.OfferReservation{
		ReservationID: uuid.NewString(),
		OfferID:       offerID,
		Quantity:      quantity,
		Status:        ports.ReservationPending,
		ExpiresAt:     now.Add(ttl).UTC(),
		CreatedAt:     now.UTC(),
	}
	s.reservations[reservation.ReservationID] = reservation
	return reservation, nil
}

func (s *Store) ConfirmReservation(_ context.Context, reservationID string, now time.Time) (ports.OfferReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[strings.TrimSpace(reservationID)]
	if !ok {
		return ports.OfferReservation{}, domainerrors.ErrReservationNotFound
	}
	if reservation.Status != ports.ReservationPending {
		return ports.OfferReservation{}, domainerrors.ErrReservationNotPending
	}
	reservation.Status = ports.ReservationConfirmed
	s.reservations[reservation.ReservationID] = reservation
	return reservation, nil
}

func (s *Store) CancelReservation(_ context.Context, reservationID string, now time.Time) (ports.OfferReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(reservationID, ports.ReservationCancelled)
}

func (s *Store) ExpireReservation(_ context.Context, reservationID string, now time.Time) (ports.OfferReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(reservationID, ports.ReservationExpired)
}

func (s *Store) releaseLocked(reservationID string, status ports.ReservationStatus) (ports.OfferReservation, error) {
	reservation, ok := s.reservations[strings.TrimSpace(reservationID)]
	if !ok {
		return ports.OfferReservation{}, domainerrors.ErrReservationNotFound
	}
	if reservation.Status != ports.ReservationPending {
		return ports.OfferReservation{}, domainerrors.ErrReservationNotPending
	}
	reservation.Status = status
	s.reservations[reservation.ReservationID] = reservation

	if offer, ok := s.offers[reservation.OfferID]; ok {
		offer.Stock += reservation.Quantity
		s.offers[offer.OfferID] = offer
	}
	return reservation, nil
}

func (s *Store) ListExpiredReservations(_ context.Context, now time.Time, limit int) ([]ports.OfferReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]ports.OfferReservation, 0)
	for _, reservation := range s.reservations {
		if reservation.Status != ports.ReservationPending {
			continue
		}
		if reservation.ExpiresAt.After(now.UTC()) {
			continue
		}
		items = append(items, reservation)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// PurgeReservations deletes terminal reservations older than olderThan,
// bounded by limit, and reports the count removed.
func (s *Store) PurgeReservations(_ context.Context, olderThan time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, reservation := range s.reservations {
		if purged >= limit {
			break
		}
		if reservation.Status != ports.ReservationExpired && reservation.Status != ports.ReservationCancelled {
			continue
		}
		if reservation.CreatedAt.After(olderThan) {
			continue
		}
		delete(s.reservations, id)
		purged++
	}
	return purged, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, envelope)
	return nil
}

// ListOutbox returns every queued envelope. Test helper.
func (s *Store) ListOutbox() []ports.EventEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.EventEnvelope(nil), s.outbox...)
}

func (s *Store) Now() time.Time { return time.Now().UTC() }

func (s *Store) NewID(_ context.Context) (string, error) { return uuid.NewString(), nil }

var (
	_ ports.Repository   = (*Store)(nil)
	_ ports.OutboxWriter = (*Store)(nil)
	_ ports.Clock        = (*Store)(nil)
	_ ports.IDGenerator  = (*Store)(nil)
)
