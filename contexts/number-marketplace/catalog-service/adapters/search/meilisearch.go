package search

import (
	"context"
	"fmt"
	"strconv"

	"solomon/contexts/number-marketplace/catalog-service/ports"

	"github.com/meilisearch/meilisearch-go"
)

const indexName = "offers"

// Index is the search-backed offer catalog collaborator of spec.md §4.8 and
// §6: long operations return task ids that callers can await, exactly
// meilisearch's AddDocuments/DeleteDocument/Search model.
type Index struct {
	client meilisearch.ServiceManager
}

func NewIndex(host, apiKey string) *Index {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
	return &Index{client: client}
}

func (i *Index) UpsertOffer(_ context.Context, offer ports.Offer) (string, error) {
	task, err := i.client.Index(indexName).AddDocuments([]offerDocument{toDocument(offer)}, "offer_id")
	if err != nil {
		return "", fmt.Errorf("search upsert offer %s: %w", offer.OfferID, err)
	}
	return strconv.FormatInt(task.TaskUID, 10), nil
}

func (i *Index) DeleteOffer(_ context.Context, offerID string) (string, error) {
	task, err := i.client.Index(indexName).DeleteDocument(offerID)
	if err != nil {
		return "", fmt.Errorf("search delete offer %s: %w", offerID, err)
	}
	return strconv.FormatInt(task.TaskUID, 10), nil
}

func (i *Index) Search(_ context.Context, query string, limit int) ([]ports.Offer, error) {
	if limit <= 0 {
		limit = 20
	}
	result, err := i.client.Index(indexName).Search(query, &meilisearch.SearchRequest{Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("search offers %q: %w", query, err)
	}

	offers := make([]ports.Offer, 0, len(result.Hits))
	for _, hit := range result.Hits {
		raw, ok := hit.(map[string]any)
		if !ok {
			continue
		}
		offers = append(offers, fromHit(raw))
	}
	return offers, nil
}

type offerDocument struct {
	OfferID             string `json:"offer_id"`
	ProviderID          string `json:"provider_id"`
	ProviderServiceCode string `json:"provider_service_code"`
	ProviderCountryCode string `json:"provider_country_code"`
	CanonicalService    string `json:"canonical_service"`
	CanonicalCountry    string `json:"canonical_country"`
	OperatorID          string `json:"operator_id"`
	PriceCents          int64  `json:"price_cents"`
	Stock               int    `json:"stock"`
	Active              bool   `json:"active"`
}

func toDocument(offer ports.Offer) offerDocument {
	return offerDocument{
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
	}
}

func fromHit(raw map[string]any) ports.Offer {
	return ports.Offer{
		OfferID:             stringField(raw, "offer_id"),
		ProviderID:          stringField(raw, "provider_id"),
		ProviderServiceCode: stringField(raw, "provider_service_code"),
		ProviderCountryCode: stringField(raw, "provider_country_code"),
		CanonicalService:    stringField(raw, "canonical_service"),
		CanonicalCountry:    stringField(raw, "canonical_country"),
		OperatorID:          stringField(raw, "operator_id"),
		PriceCents:          int64Field(raw, "price_cents"),
		Stock:               int(int64Field(raw, "stock")),
		Active:              boolField(raw, "active"),
	}
}

func stringField(raw map[string]any, key string) string {
	v, _ := raw[key].(string)
	return v
}

func int64Field(raw map[string]any, key string) int64 {
	switch v := raw[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func boolField(raw map[string]any, key string) bool {
	v, _ := raw[key].(bool)
	return v
}

var _ ports.SearchIndex = (*Index)(nil)
