package engine

import (
	"context"
	"sync"
)

// Values is run-scoped keyed state. Steps that need to accumulate across
// fan-in arrivals (the engine provides no join barrier) store partial
// results here under a stable key.
type Values struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewValues creates an empty value set.
func NewValues() *Values {
	return &Values{data: make(map[string]any)}
}

// Get returns the value for key.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.data[key]
	return val, ok
}

// Set stores the value for key.
func (v *Values) Set(key string, val any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data[key] = val
}

// Swap stores val and returns the previous value, atomically. Useful for
// fan-in counters and accumulators.
func (v *Values) Swap(key string, val any) (any, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	prev, ok := v.data[key]
	v.data[key] = val
	return prev, ok
}

type valuesKey struct{}

// WithValues attaches run-scoped state to a context.
func WithValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, valuesKey{}, v)
}

// ValuesFrom returns the run-scoped state attached to ctx, or nil.
func ValuesFrom(ctx context.Context) *Values {
	v, _ := ctx.Value(valuesKey{}).(*Values)
	return v
}
