// Package metrics is the Kernel's transitions_total{from,to,provider}
// counter (spec.md §4.2 step 6). It holds in-process counters; no
// third-party metrics backend is wired in the retrieved pack, so these
// counters are exposed for a caller to scrape or log on an interval.
package metrics

import (
	"sync"

	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	"solomon/contexts/number-marketplace/activation-service/ports"
)

type transitionKey struct {
	from, to, provider string
}

type Counters struct {
	mu     sync.Mutex
	counts map[transitionKey]int64
}

func NewCounters() *Counters {
	return &Counters{counts: make(map[transitionKey]int64)}
}

func (c *Counters) IncrementTransition(from, to statemachine.State, providerID string) {
	key := transitionKey{from: string(from), to: string(to), provider: providerID}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
}

func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for key, count := range c.counts {
		out[key.from+"->"+key.to+"@"+key.provider] = count
	}
	return out
}

var _ ports.MetricsSink = (*Counters)(nil)
