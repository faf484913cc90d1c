package application_test

import (
	"context"
	"testing"
	"time"

	"solomon/contexts/number-marketplace/order-orchestrator-service/application"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
)

func TestGetOrderStatusComputesActionFlags(t *testing.T) {
	kernel := newFakeKernel()
	kernel.created = ports.Activation{
		ActivationID: "act-1",
		UserID:       "user-1",
		ProviderID:   "smsactivate",
		State:        ports.StateActive,
		PhoneNumber:  "+1555",
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	}
	kernel.state["act-1"] = ports.StateActive

	providers := &fakeProviders{resendSupport: true}
	queries := application.Queries{Kernel: kernelWithMessages{fakeKernel: kernel, messages: []ports.Message{{Code: "123456"}}}, Providers: providers}

	status, err := queries.GetOrderStatus(context.Background(), "act-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.CanRequestResend {
		t.Fatalf("expected resend to be allowed with messages present and provider support")
	}
	if !status.CanCancel {
		t.Fatalf("expected cancel to be allowed while ACTIVE")
	}
	if status.SmsCount != 1 {
		t.Fatalf("expected SmsCount to reflect the messages list, got %d", status.SmsCount)
	}
}

func TestGetOrderStatusRejectsOtherUsers(t *testing.T) {
	kernel := newFakeKernel()
	kernel.created = ports.Activation{ActivationID: "act-1", UserID: "user-1", State: ports.StateActive}
	kernel.state["act-1"] = ports.StateActive

	queries := application.Queries{Kernel: kernel, Providers: &fakeProviders{}}

	if _, err := queries.GetOrderStatus(context.Background(), "act-1", "someone-else"); err == nil {
		t.Fatalf("expected an error when the requesting user does not own the activation")
	}
}

// kernelWithMessages overrides ListMessages on top of the base fakeKernel so
// the resend-eligibility computation can be exercised without adding fields
// to the saga's tests.
type kernelWithMessages struct {
	*fakeKernel
	messages []ports.Message
}

func (k kernelWithMessages) ListMessages(ctx context.Context, activationID string) ([]ports.Message, error) {
	return k.messages, nil
}
