package application_test

import (
	"context"
	"testing"

	"solomon/contexts/number-marketplace/catalog-service/adapters/memory"
	"solomon/contexts/number-marketplace/catalog-service/application"
	domainerrors "solomon/contexts/number-marketplace/catalog-service/domain/errors"
	"solomon/contexts/number-marketplace/catalog-service/ports"
)

func newService() (application.Service, *memory.Store) {
	store := memory.NewStore()
	return application.Service{Repo: store, Outbox: store, Clock: store, IDGen: store}, store
}

func seedOffer(store *memory.Store, id string, priceCents int64, stock int) {
	store.Seed(ports.Offer{
		OfferID:             id,
		ProviderID:          "providerA",
		ProviderServiceCode: "wa",
		ProviderCountryCode: "1",
		CanonicalService:    "whatsapp",
		CanonicalCountry:    "united states",
		PriceCents:          priceCents,
		Stock:               stock,
		Active:              true,
	})
}

func TestResolveCheapestInStockOffer(t *testing.T) {
	service, store := newService()
	seedOffer(store, "offer-expensive", 200, 5)
	seedOffer(store, "offer-cheap", 100, 5)
	ctx := context.Background()

	offer, err := service.Resolve(ctx, ports.ResolveInput{ServiceInput: "whatsapp", CountryInput: "united states"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if offer.OfferID != "offer-cheap" {
		t.Fatalf("expected cheapest offer, got %s", offer.OfferID)
	}
}

func TestResolveSkipsOutOfStock(t *testing.T) {
	service, store := newService()
	seedOffer(store, "offer-empty", 50, 0)
	seedOffer(store, "offer-available", 150, 3)
	ctx := context.Background()

	offer, err := service.Resolve(ctx, ports.ResolveInput{ServiceInput: "whatsapp", CountryInput: "united states"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if offer.OfferID != "offer-available" {
		t.Fatalf("expected in-stock offer, got %s", offer.OfferID)
	}
}

func TestResolveFallsBackToProviderServiceCode(t *testing.T) {
	service, store := newService()
	store.Seed(ports.Offer{
		OfferID:             "offer-code-match",
		ProviderID:          "providerB",
		ProviderServiceCode: "TELEGRAM",
		ProviderCountryCode: "44",
		CanonicalService:    "telegram messenger",
		CanonicalCountry:    "united kingdom",
		PriceCents:          80,
		Stock:               2,
		Active:              true,
	})
	ctx := context.Background()

	offer, err := service.Resolve(ctx, ports.ResolveInput{ServiceInput: "telegram", CountryInput: "united kingdom"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if offer.OfferID != "offer-code-match" {
		t.Fatalf("expected provider-code match, got %s", offer.OfferID)
	}
}

func TestResolveNoMatch(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	_, err := service.Resolve(ctx, ports.ResolveInput{ServiceInput: "signal", CountryInput: "nowhere"})
	if err != domainerrors.ErrNoMatchingOffer {
		t.Fatalf("expected no matching offer, got %v", err)
	}
}

func TestReserveConfirmRoundTrip(t *testing.T) {
	service, store := newService()
	seedOffer(store, "offer-1", 100, 2)
	ctx := context.Background()

	reservation, err := service.Reserve(ctx, "offer-1", 1)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if reservation.Status != ports.ReservationPending {
		t.Fatalf("expected pending reservation, got %s", reservation.Status)
	}

	offer, err := service.GetOffer(ctx, "offer-1")
	if err != nil {
		t.Fatalf("get offer failed: %v", err)
	}
	if offer.Stock != 1 {
		t.Fatalf("expected stock decremented to 1, got %d", offer.Stock)
	}

	if _, err := service.ConfirmReservation(ctx, reservation.ReservationID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
}

func TestCancelReservationRestoresStockAndQueuesOfferUpdated(t *testing.T) {
	service, store := newService()
	seedOffer(store, "offer-2", 100, 1)
	ctx := context.Background()

	reservation, err := service.Reserve(ctx, "offer-2", 1)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := service.CancelReservation(ctx, reservation.ReservationID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	offer, err := service.GetOffer(ctx, "offer-2")
	if err != nil {
		t.Fatalf("get offer failed: %v", err)
	}
	if offer.Stock != 1 {
		t.Fatalf("expected stock restored to 1, got %d", offer.Stock)
	}

	outbox := store.ListOutbox()
	found := false
	for _, envelope := range outbox {
		if envelope.EventType == "offer.updated" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an offer.updated outbox event")
	}
}

func TestAggregateGroupsByCountry(t *testing.T) {
	service, store := newService()
	seedOffer(store, "offer-3", 100, 5)
	seedOffer(store, "offer-4", 300, 2)
	ctx := context.Background()

	buckets, err := service.Aggregate(ctx, "country")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected one bucket for united states, got %d", len(buckets))
	}
	bucket := buckets[0]
	if bucket.OfferCount != 2 || bucket.TotalStock != 7 {
		t.Fatalf("unexpected bucket totals: %+v", bucket)
	}
	if bucket.MinPriceCents != 100 || bucket.MaxPriceCents != 300 {
		t.Fatalf("unexpected price range: %+v", bucket)
	}
}
