package metrics

import (
	"slices"
	"strings"
	"sync"
)

// Registry holds a set of metrics keyed by name.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// MustRegister registers metrics and panics on a duplicate name.
func (r *Registry) MustRegister(ms ...Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range ms {
		if _, ok := r.metrics[m.Name()]; ok {
			panic("metrics: duplicate metric " + m.Name())
		}
		r.metrics[m.Name()] = m
	}
}

// Export renders every metric in Prometheus text format, sorted by name.
func (r *Registry) Export() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		r.mu.RLock()
		m := r.metrics[name]
		r.mu.RUnlock()
		sb.WriteString(m.Describe())
	}
	return sb.String()
}
