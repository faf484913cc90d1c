package httpadapter

import (
	"context"
	"log/slog"

	"solomon/contexts/number-marketplace/activation-service/application"
	httptransport "solomon/contexts/number-marketplace/activation-service/transport/http"
)

// Handler exposes read-only activation status and history; writes only
// ever happen through the Kernel, driven by the Order Orchestrator, Poll
// Manager, and Reaper in-process, never over this surface.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) GetActivationHandler(ctx context.Context, activationID string) (httptransport.ActivationDTO, error) {
	activation, err := h.Service.GetActivation(ctx, activationID)
	if err != nil {
		return httptransport.ActivationDTO{}, err
	}
	return httptransport.ActivationDTO{
		ActivationID: activation.ActivationID,
		UserID:       activation.UserID,
		ProviderID:   activation.ProviderID,
		PriceCents:   activation.PriceCents,
		State:        string(activation.State),
		UpstreamID:   activation.UpstreamID,
		PhoneNumber:  activation.PhoneNumber,
		CreatedAt:    activation.CreatedAt,
	}, nil
}

func (h Handler) HistoryHandler(ctx context.Context, activationID string) (httptransport.HistoryResponse, error) {
	entries, err := h.Service.History(ctx, activationID)
	if err != nil {
		return httptransport.HistoryResponse{}, err
	}
	resp := httptransport.HistoryResponse{ActivationID: activationID, Entries: make([]httptransport.HistoryEntryDTO, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, httptransport.HistoryEntryDTO{
			FromState: string(entry.FromState),
			ToState:   string(entry.ToState),
			Reason:    entry.Reason,
			TraceID:   entry.TraceID,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp, nil
}
