package registry_test

import (
	"context"
	"testing"
	"time"

	"solomon/contexts/number-marketplace/provider-adapter/ports"
	"solomon/contexts/number-marketplace/provider-adapter/registry"
)

type fullAdapter struct{ id string }

func (f fullAdapter) ID() string                                                          { return f.id }
func (f fullAdapter) ListCountries(ctx context.Context) ([]ports.Country, error)           { return nil, nil }
func (f fullAdapter) ListServices(ctx context.Context, country string) ([]ports.Service, error) {
	return nil, nil
}
func (f fullAdapter) Acquire(ctx context.Context, country, service string, opts ports.AcquireOptions) (ports.Acquisition, error) {
	return ports.Acquisition{}, nil
}
func (f fullAdapter) Status(ctx context.Context, upstreamID string) (ports.StatusResult, error) {
	return ports.StatusResult{}, nil
}
func (f fullAdapter) Cancel(ctx context.Context, upstreamID string) error { return nil }
func (f fullAdapter) Balance(ctx context.Context) (float64, error)       { return 42.5, nil }
func (f fullAdapter) StatusBatch(ctx context.Context, ids []string) (map[string]ports.StatusResult, error) {
	return map[string]ports.StatusResult{}, nil
}
func (f fullAdapter) RequestResend(ctx context.Context, upstreamID string) error { return nil }

type bareAdapter struct{ id string }

func (b bareAdapter) ID() string                                                 { return b.id }
func (b bareAdapter) ListCountries(ctx context.Context) ([]ports.Country, error) { return nil, nil }
func (b bareAdapter) ListServices(ctx context.Context, country string) ([]ports.Service, error) {
	return nil, nil
}
func (b bareAdapter) Acquire(ctx context.Context, country, service string, opts ports.AcquireOptions) (ports.Acquisition, error) {
	return ports.Acquisition{}, nil
}
func (b bareAdapter) Status(ctx context.Context, upstreamID string) (ports.StatusResult, error) {
	return ports.StatusResult{}, nil
}
func (b bareAdapter) Cancel(ctx context.Context, upstreamID string) error { return nil }

func TestRegistryProbesOptionalCapabilities(t *testing.T) {
	reg := registry.New(fullAdapter{id: "full"}, bareAdapter{id: "bare"})

	if !reg.SupportsResend("full") {
		t.Fatalf("expected full adapter to support resend")
	}
	if reg.SupportsResend("bare") {
		t.Fatalf("expected bare adapter to not support resend")
	}
	if !reg.SupportsBatchStatus("full") {
		t.Fatalf("expected full adapter to support batch status")
	}
	if reg.SupportsBatchStatus("bare") {
		t.Fatalf("expected bare adapter to not support batch status")
	}
}

func TestRegistryBalanceReturnsAdapterValue(t *testing.T) {
	reg := registry.New(fullAdapter{id: "full"})
	ctx := context.Background()

	first, err := reg.Balance(ctx, "full")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if first != 42.5 {
		t.Fatalf("expected 42.5, got %v", first)
	}
}

func TestRegistryResendOnUnsupportedProvider(t *testing.T) {
	reg := registry.New(bareAdapter{id: "bare"})
	ctx := context.Background()

	if err := reg.RequestResend(ctx, "bare", "upstream-1"); err == nil {
		t.Fatalf("expected error requesting resend on unsupported provider")
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := registry.New()
	if _, err := reg.Get("ghost"); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	_ = time.Second
}
