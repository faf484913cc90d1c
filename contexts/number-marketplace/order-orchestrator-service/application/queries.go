package application

import (
	"context"

	domainerrors "solomon/contexts/number-marketplace/order-orchestrator-service/domain/errors"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
)

// OrderStatus is the getOrderStatus(orderId, userId) response of spec.md §6.
type OrderStatus struct {
	ActivationID     string
	State            ports.ActivationState
	Phone            string
	SmsCount         int
	Messages         []ports.Message
	CreatedAt        string
	ExpiresAt        string
	CanCancel        bool
	CanRequestResend bool
}

type Queries struct {
	Kernel    ports.ActivationKernel
	Providers ports.ProviderRegistry
}

func (q Queries) GetOrderStatus(ctx context.Context, activationID, userID string) (OrderStatus, error) {
	activation, err := q.Kernel.GetActivation(ctx, activationID)
	if err != nil {
		return OrderStatus{}, err
	}
	if activation.UserID != userID {
		return OrderStatus{}, domainerrors.ErrActivationConflict
	}
	messages, err := q.Kernel.ListMessages(ctx, activationID)
	if err != nil {
		return OrderStatus{}, err
	}

	canCancel := activation.State == ports.StateReserved || activation.State == ports.StateActive
	canResend := activation.State == ports.StateActive && len(messages) > 0 && q.Providers.SupportsResend(activation.ProviderID)

	return OrderStatus{
		ActivationID:     activation.ActivationID,
		State:            activation.State,
		Phone:            activation.PhoneNumber,
		SmsCount:         len(messages),
		Messages:         messages,
		CreatedAt:        activation.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		ExpiresAt:        activation.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		CanCancel:        canCancel,
		CanRequestResend: canResend,
	}, nil
}
