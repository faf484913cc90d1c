package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"solomon/contexts/number-marketplace/catalog-service/application"
	"solomon/contexts/number-marketplace/catalog-service/ports"
	httptransport "solomon/contexts/number-marketplace/catalog-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ResolveHandler(ctx context.Context, req httptransport.ResolveRequest) (httptransport.ResolveResponse, error) {
	offer, err := h.Service.Resolve(ctx, ports.ResolveInput{
		ServiceInput: req.ServiceInput,
		CountryInput: req.CountryInput,
		OperatorID:   req.OperatorID,
		ProviderID:   req.ProviderID,
	})
	if err != nil {
		return httptransport.ResolveResponse{}, err
	}
	return httptransport.ResolveResponse{Status: "success", Data: toOfferDTO(offer)}, nil
}

func (h Handler) SearchHandler(ctx context.Context, req httptransport.SearchRequest) (httptransport.SearchResponse, error) {
	offers, err := h.Service.SearchOffers(ctx, req.Query, req.Limit)
	if err != nil {
		return httptransport.SearchResponse{}, err
	}
	resp := httptransport.SearchResponse{Status: "success", Data: make([]httptransport.OfferDTO, 0, len(offers))}
	for _, offer := range offers {
		resp.Data = append(resp.Data, toOfferDTO(offer))
	}
	return resp, nil
}

func (h Handler) AggregateHandler(ctx context.Context, groupBy string) (httptransport.AggregationResponse, error) {
	buckets, err := h.Service.Aggregate(ctx, groupBy)
	if err != nil {
		return httptransport.AggregationResponse{}, err
	}
	resp := httptransport.AggregationResponse{Status: "success", Data: make([]httptransport.AggregationBucketDTO, 0, len(buckets))}
	for _, bucket := range buckets {
		resp.Data = append(resp.Data, httptransport.AggregationBucketDTO{
			Key:              bucket.Key,
			OfferCount:       bucket.OfferCount,
			TotalStock:       bucket.TotalStock,
			MinPriceCents:    bucket.MinPriceCents,
			MaxPriceCents:    bucket.MaxPriceCents,
			Providers:        bucket.Providers,
			FreshestUpdateAt: bucket.FreshestUpdateAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func toOfferDTO(offer ports.Offer) httptransport.OfferDTO {
	return httptransport.OfferDTO{
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
		UpdatedAt:           offer.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
