package metrics

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

type desc struct {
	name string
	help string
	typ  MetricType
}

func (d desc) Name() string     { return d.name }
func (d desc) Help() string     { return d.help }
func (d desc) Type() MetricType { return d.typ }

func (d desc) header(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", d.name, d.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", d.name, d.typ)
}

// atomicFloat stores a float64 as bits for CAS updates.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) add(v float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

func (f *atomicFloat) set(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) get() float64  { return math.Float64frombits(f.bits.Load()) }

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// --- Counter ---

type counter struct {
	desc
	val atomicFloat
}

// NewCounter creates a Counter.
func NewCounter(name, help string) Counter {
	return &counter{desc: desc{name: name, help: help, typ: TypeCounter}}
}

func (c *counter) Inc() { c.val.add(1) }

// Add ignores negative deltas.
func (c *counter) Add(v float64) {
	if v > 0 {
		c.val.add(v)
	}
}

func (c *counter) Get() float64 { return c.val.get() }

func (c *counter) Describe() string {
	var sb strings.Builder
	c.header(&sb)
	fmt.Fprintf(&sb, "%s %s\n", c.name, formatValue(c.Get()))
	return sb.String()
}

// --- Gauge ---

type gauge struct {
	desc
	val atomicFloat
}

// NewGauge creates a Gauge.
func NewGauge(name, help string) Gauge {
	return &gauge{desc: desc{name: name, help: help, typ: TypeGauge}}
}

func (g *gauge) Set(v float64) { g.val.set(v) }
func (g *gauge) Add(v float64) { g.val.add(v) }
func (g *gauge) Get() float64  { return g.val.get() }

func (g *gauge) Describe() string {
	var sb strings.Builder
	g.header(&sb)
	fmt.Fprintf(&sb, "%s %s\n", g.name, formatValue(g.Get()))
	return sb.String()
}

// --- Histogram ---

type histogram struct {
	desc
	upper  []float64
	counts []atomic.Uint64
	count  atomic.Uint64
	sum    atomicFloat
}

// NewHistogram creates a Histogram. Buckets are sorted and deduplicated;
// nil selects DefBuckets.
func NewHistogram(name, help string, buckets []float64) Histogram {
	if buckets == nil {
		buckets = DefBuckets
	}
	upper := slices.Compact(slices.Sorted(slices.Values(buckets)))
	return &histogram{
		desc:   desc{name: name, help: help, typ: TypeHistogram},
		upper:  upper,
		counts: make([]atomic.Uint64, len(upper)),
	}
}

func (h *histogram) Observe(v float64) {
	if i, _ := slices.BinarySearch(h.upper, v); i < len(h.upper) {
		h.counts[i].Add(1)
	}
	h.count.Add(1)
	h.sum.add(v)
}

func (h *histogram) Count() uint64 { return h.count.Load() }
func (h *histogram) Sum() float64  { return h.sum.get() }

func (h *histogram) Describe() string {
	var sb strings.Builder
	h.header(&sb)
	var cumulative uint64
	for i, le := range h.upper {
		cumulative += h.counts[i].Load()
		fmt.Fprintf(&sb, "%s_bucket{le=\"%s\"} %d\n", h.name, formatValue(le), cumulative)
	}
	fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.Count())
	fmt.Fprintf(&sb, "%s_sum %s\n", h.name, formatValue(h.Sum()))
	fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.Count())
	return sb.String()
}

// --- CounterVec ---

type counterVec struct {
	desc
	labels []string

	mu       sync.RWMutex
	children map[string]*counter
}

// NewCounterVec creates a CounterVec with the given label names.
func NewCounterVec(name, help string, labels ...string) CounterVec {
	return &counterVec{
		desc:     desc{name: name, help: help, typ: TypeCounter},
		labels:   labels,
		children: make(map[string]*counter),
	}
}

// WithLabelValues panics when the number of values does not match the label names.
func (v *counterVec) WithLabelValues(values ...string) Counter {
	if len(values) != len(v.labels) {
		panic(fmt.Sprintf("metrics: %s expects %d label values, got %d", v.name, len(v.labels), len(values)))
	}
	pairs := make([]string, len(values))
	for i, val := range values {
		pairs[i] = fmt.Sprintf("%s=%q", v.labels[i], val)
	}
	key := v.name + "{" + strings.Join(pairs, ",") + "}"

	v.mu.RLock()
	c, ok := v.children[key]
	v.mu.RUnlock()
	if ok {
		return c
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok = v.children[key]; !ok {
		c = &counter{desc: desc{name: key, help: v.help, typ: TypeCounter}}
		v.children[key] = c
	}
	return c
}

func (v *counterVec) Describe() string {
	v.mu.RLock()
	keys := make([]string, 0, len(v.children))
	for k := range v.children {
		keys = append(keys, k)
	}
	v.mu.RUnlock()
	slices.Sort(keys)

	var sb strings.Builder
	v.header(&sb)
	for _, k := range keys {
		v.mu.RLock()
		c := v.children[k]
		v.mu.RUnlock()
		fmt.Fprintf(&sb, "%s %s\n", k, formatValue(c.Get()))
	}
	return sb.String()
}
