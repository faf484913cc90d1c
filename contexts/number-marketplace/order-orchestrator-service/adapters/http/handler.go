package httpadapter

import (
	"context"
	"log/slog"

	"solomon/contexts/number-marketplace/order-orchestrator-service/application"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
	httptransport "solomon/contexts/number-marketplace/order-orchestrator-service/transport/http"
)

// Handler exposes the §6 command surface (purchase, getOrderStatus,
// cancelOrder, requestResend) independent of any particular router.
type Handler struct {
	Saga    application.Saga
	Queries application.Queries
	Logger  *slog.Logger
}

func (h Handler) PurchaseHandler(ctx context.Context, traceID string, req httptransport.PurchaseRequest) httptransport.PurchaseResponse {
	result := h.Saga.Purchase(ctx, ports.PurchaseInput{
		UserID:         req.UserID,
		ProviderID:     req.ProviderID,
		CountryCode:    req.CountryCode,
		ServiceCode:    req.ServiceCode,
		PriceCents:     req.PriceCents,
		ServiceName:    req.ServiceName,
		CountryName:    req.CountryName,
		OperatorID:     req.OperatorID,
		IdempotencyKey: req.IdempotencyKey,
		TraceID:        traceID,
	})
	return httptransport.PurchaseResponse{
		OK:           result.OK,
		ActivationID: result.ActivationID,
		Phone:        result.Phone,
		UpstreamID:   result.UpstreamID,
		ErrCode:      string(result.ErrCode),
		Err:          result.Message,
	}
}

func (h Handler) GetOrderStatusHandler(ctx context.Context, activationID, userID string) (httptransport.OrderStatusResponse, error) {
	status, err := h.Queries.GetOrderStatus(ctx, activationID, userID)
	if err != nil {
		return httptransport.OrderStatusResponse{}, err
	}
	messages := make([]httptransport.MessageDTO, 0, len(status.Messages))
	for _, m := range status.Messages {
		messages = append(messages, httptransport.MessageDTO{
			Code:       m.Code,
			Content:    m.Content,
			ReceivedAt: m.ReceivedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return httptransport.OrderStatusResponse{
		State:            string(status.State),
		Phone:            status.Phone,
		SmsCount:         status.SmsCount,
		Messages:         messages,
		CreatedAt:        status.CreatedAt,
		ExpiresAt:        status.ExpiresAt,
		CanCancel:        status.CanCancel,
		CanRequestResend: status.CanRequestResend,
	}, nil
}

func (h Handler) CancelOrderHandler(ctx context.Context, activationID, userID, traceID string) httptransport.OKResponse {
	if err := h.Saga.Cancel(ctx, activationID, userID, traceID); err != nil {
		return httptransport.OKResponse{Err: err.Error()}
	}
	return httptransport.OKResponse{OK: true}
}

func (h Handler) RequestResendHandler(ctx context.Context, activationID, userID string) httptransport.OKResponse {
	if err := h.Saga.ResendSms(ctx, activationID, userID); err != nil {
		return httptransport.OKResponse{Err: err.Error()}
	}
	return httptransport.OKResponse{OK: true}
}
