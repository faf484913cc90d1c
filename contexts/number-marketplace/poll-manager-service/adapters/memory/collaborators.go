package memory

import (
	"context"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	activationstatemachine "solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	activationports "solomon/contexts/number-marketplace/activation-service/ports"
	"solomon/contexts/number-marketplace/poll-manager-service/ports"
	providerports "solomon/contexts/number-marketplace/provider-adapter/ports"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"
)

// ActivationAdapter satisfies ports.ActivationKernel against
// activation-service, translating its Number/SmsMessage read model into the
// poll cycle's flattened PollableActivation view.
type ActivationAdapter struct {
	Module activationservice.Module
}

func (a ActivationAdapter) LoadPollable(ctx context.Context, activationIDs []string) ([]ports.PollableActivation, error) {
	out := make([]ports.PollableActivation, 0, len(activationIDs))
	for _, id := range activationIDs {
		activation, err := a.Module.Service.GetActivation(ctx, id)
		if err != nil {
			continue
		}
		state := ports.ActivationState(activation.State)
		if state != ports.StateActive && state != ports.StateReceived {
			continue
		}
		number, found, err := a.Module.Service.GetNumberByActivation(ctx, id)
		if err != nil || !found {
			continue
		}
		messages, err := a.Module.Service.ListSmsMessages(ctx, number.NumberID)
		if err != nil {
			continue
		}
		item := ports.PollableActivation{
			ActivationID: activation.ActivationID,
			ProviderID:   activation.ProviderID,
			UpstreamID:   activation.UpstreamID,
			NumberID:     number.NumberID,
			State:        state,
			CreatedAt:    activation.CreatedAt,
			SmsCount:     len(messages),
		}
		if len(messages) > 0 {
			item.LastSmsAt = messages[len(messages)-1].ReceivedAt
		}
		out = append(out, item)
	}
	return out, nil
}

func (a ActivationAdapter) IngestMessage(ctx context.Context, activationID, numberID, code, content string) (bool, error) {
	return a.Module.Service.IngestSms(ctx, nil, numberID, code, content)
}

func (a ActivationAdapter) TransitionToReceived(ctx context.Context, activationID string) error {
	_, err := a.Module.Kernel.Transition(ctx, activationports.TransitionRequest{
		ActivationID: activationID,
		ToState:      activationstatemachine.Received,
		Reason:       "sms received",
	})
	return err
}

func (a ActivationAdapter) ExtendNumberExpiry(ctx context.Context, activationID string) error {
	number, found, err := a.Module.Service.GetNumberByActivation(ctx, activationID)
	if err != nil || !found {
		return err
	}
	return a.Module.Service.ExtendNumberExpiry(ctx, nil, number.NumberID)
}

// ProviderAdapter satisfies ports.ProviderRegistry against the
// provider-adapter registry's optional statusBatch capability.
type ProviderAdapter struct {
	Registry *providerregistry.Registry
}

func (p ProviderAdapter) Status(ctx context.Context, providerID, upstreamID string) (ports.ProviderStatusResult, error) {
	adapter, err := p.Registry.Get(providerID)
	if err != nil {
		return ports.ProviderStatusResult{}, err
	}
	result, err := adapter.Status(ctx, upstreamID)
	if err != nil {
		return ports.ProviderStatusResult{}, err
	}
	return toResult(result), nil
}

func (p ProviderAdapter) StatusBatch(ctx context.Context, providerID string, upstreamIDs []string) (map[string]ports.ProviderStatusResult, error) {
	adapter, err := p.Registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	batchAdapter, ok := adapter.(providerports.BatchStatusCapable)
	if !ok {
		return nil, providerports.ErrBadService
	}
	raw, err := batchAdapter.StatusBatch(ctx, upstreamIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ports.ProviderStatusResult, len(raw))
	for id, result := range raw {
		out[id] = toResult(result)
	}
	return out, nil
}

func (p ProviderAdapter) SupportsBatchStatus(providerID string) bool {
	return p.Registry.SupportsBatchStatus(providerID)
}

func toResult(result providerports.StatusResult) ports.ProviderStatusResult {
	messages := make([]ports.ProviderMessage, 0, len(result.Messages))
	for _, m := range result.Messages {
		messages = append(messages, ports.ProviderMessage{Code: m.Code, Content: m.Content})
	}
	terminal := result.Status == providerports.MessageStatusCancelled ||
		result.Status == providerports.MessageStatusExpired ||
		result.Status == providerports.MessageStatusError
	return ports.ProviderStatusResult{Messages: messages, Terminal: terminal}
}
