package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solomon/contexts/number-marketplace/provider-adapter/ports"
)

var ErrUnknownProvider = fmt.Errorf("unknown provider")

// Registry looks adapters up by provider id and probes each one for the
// optional capabilities of spec.md §4.4 via type assertion, never by
// guessing from the provider's name.
type Registry struct {
	adapters map[string]ports.Adapter

	mu              sync.Mutex
	balanceCache    map[string]cachedBalance
	balanceCacheTTL time.Duration
}

type cachedBalance struct {
	value     float64
	expiresAt time.Time
}

func New(adapters ...ports.Adapter) *Registry {
	byID := make(map[string]ports.Adapter, len(adapters))
	for _, adapter := range adapters {
		byID[adapter.ID()] = adapter
	}
	return &Registry{
		adapters:        byID,
		balanceCache:    make(map[string]cachedBalance),
		balanceCacheTTL: time.Minute,
	}
}

func (r *Registry) Get(providerID string) (ports.Adapter, error) {
	adapter, ok := r.adapters[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	return adapter, nil
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

// SupportsBatchStatus reports whether the provider implements the optional
// statusBatch capability that the poll manager's batched path requires.
func (r *Registry) SupportsBatchStatus(providerID string) bool {
	adapter, ok := r.adapters[providerID]
	if !ok {
		return false
	}
	_, ok = adapter.(ports.BatchStatusCapable)
	return ok
}

// SupportsResend reports whether the provider can service requestResend.
func (r *Registry) SupportsResend(providerID string) bool {
	adapter, ok := r.adapters[providerID]
	if !ok {
		return false
	}
	_, ok = adapter.(ports.ResendCapable)
	return ok
}

// RequestResend drives the optional resend capability; callers must map a
// false SupportsResend into a NOT_SUPPORTED response rather than calling
// this method speculatively.
func (r *Registry) RequestResend(ctx context.Context, providerID, upstreamID string) error {
	adapter, err := r.Get(providerID)
	if err != nil {
		return err
	}
	resender, ok := adapter.(ports.ResendCapable)
	if !ok {
		return fmt.Errorf("provider %s does not support resend", providerID)
	}
	return resender.RequestResend(ctx, upstreamID)
}

// StatusBatch drives the optional statusBatch capability.
func (r *Registry) StatusBatch(ctx context.Context, providerID string, upstreamIDs []string) (map[string]ports.StatusResult, error) {
	adapter, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}
	batched, ok := adapter.(ports.BatchStatusCapable)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support batched status", providerID)
	}
	return batched.StatusBatch(ctx, upstreamIDs)
}

// Balance reads the optional balance capability with a short-lived cache,
// matching the original system's 1-minute provider balance cache.
func (r *Registry) Balance(ctx context.Context, providerID string) (float64, error) {
	r.mu.Lock()
	if cached, ok := r.balanceCache[providerID]; ok && cached.expiresAt.After(time.Now().UTC()) {
		r.mu.Unlock()
		return cached.value, nil
	}
	r.mu.Unlock()

	adapter, err := r.Get(providerID)
	if err != nil {
		return 0, err
	}
	balanceCapable, ok := adapter.(ports.BalanceCapable)
	if !ok {
		return 0, fmt.Errorf("provider %s does not report balance", providerID)
	}
	balance, err := balanceCapable.Balance(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.balanceCache[providerID] = cachedBalance{value: balance, expiresAt: time.Now().UTC().Add(r.balanceCacheTTL)}
	r.mu.Unlock()
	return balance, nil
}
