package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"solomon/contexts/number-marketplace/wallet-service/application"
	"solomon/contexts/number-marketplace/wallet-service/ports"
	httptransport "solomon/contexts/number-marketplace/wallet-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ReserveHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.ReserveRequest,
) (httptransport.LedgerEntryResponse, error) {
	entry, err := h.Service.Reserve(ctx, ports.ReserveInput{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		Memo:           req.Memo,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.LedgerEntryResponse{}, err
	}
	return httptransport.LedgerEntryResponse{Status: "success", Data: toDTO(entry)}, nil
}

func (h Handler) CommitHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.SettleRequest,
) (httptransport.LedgerEntryResponse, error) {
	entry, err := h.Service.Commit(ctx, ports.SettleInput{
		ReservationID:  req.ReservationID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.LedgerEntryResponse{}, err
	}
	return httptransport.LedgerEntryResponse{Status: "success", Data: toDTO(entry)}, nil
}

func (h Handler) RollbackHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.SettleRequest,
) (httptransport.LedgerEntryResponse, error) {
	entry, err := h.Service.Rollback(ctx, ports.SettleInput{
		ReservationID:  req.ReservationID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.LedgerEntryResponse{}, err
	}
	return httptransport.LedgerEntryResponse{Status: "success", Data: toDTO(entry)}, nil
}

func (h Handler) RefundHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.RefundRequest,
) (httptransport.LedgerEntryResponse, error) {
	entry, err := h.Service.Refund(ctx, ports.RefundInput{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		Memo:           req.Memo,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.LedgerEntryResponse{}, err
	}
	return httptransport.LedgerEntryResponse{Status: "success", Data: toDTO(entry)}, nil
}

func (h Handler) BalanceHandler(ctx context.Context, userID string) (httptransport.BalanceResponse, error) {
	amount, err := h.Service.Balance(ctx, userID)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{Status: "success", UserID: userID, Amount: amount}, nil
}

func (h Handler) HistoryHandler(ctx context.Context, req httptransport.HistoryRequest) (httptransport.HistoryResponse, error) {
	items, err := h.Service.History(ctx, req.UserID, req.Limit)
	if err != nil {
		return httptransport.HistoryResponse{}, err
	}
	resp := httptransport.HistoryResponse{Status: "success", Data: make([]httptransport.LedgerEntryDTO, 0, len(items))}
	for _, item := range items {
		resp.Data = append(resp.Data, toDTO(item))
	}
	return resp, nil
}

func toDTO(entry ports.LedgerEntry) httptransport.LedgerEntryDTO {
	return httptransport.LedgerEntryDTO{
		EntryID:       entry.EntryID,
		UserID:        entry.UserID,
		Kind:          string(entry.Kind),
		Amount:        entry.Amount,
		ReservationID: entry.ReservationID,
		Reason:        entry.Reason,
		Memo:          entry.Memo,
		CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
