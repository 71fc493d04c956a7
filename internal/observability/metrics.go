package observability

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/planloom/planloom-backend/internal/platform/envutil"
)

// Metrics is a small in-process registry exported in Prometheus text
// format. It tracks the maintenance API, graph-store operations, and
// reconciliation runs.
type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	storeOps     *CounterVec
	storeLatency *HistogramVec
	cleanupRuns  *CounterVec
	cleanupNodes *CounterVec
	mergeGroups  *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func Init() *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			return
		}
		instance = &Metrics{
			apiRequests: NewCounterVec("planloom_api_requests_total",
				"Maintenance API requests by method, route and status.",
				[]string{"method", "route", "status"}),
			apiLatency: NewHistogramVec("planloom_api_latency_seconds",
				"Maintenance API latency.",
				[]string{"route"}, nil),
			storeOps: NewCounterVec("planloom_store_operations_total",
				"Graph store operations by operation and status.",
				[]string{"operation", "status"}),
			storeLatency: NewHistogramVec("planloom_store_latency_seconds",
				"Graph store operation latency.",
				[]string{"operation"}, nil),
			cleanupRuns: NewCounterVec("planloom_cleanup_runs_total",
				"Cleanup invocations by action, mode and status.",
				[]string{"action", "mode", "status"}),
			cleanupNodes: NewCounterVec("planloom_cleanup_nodes_total",
				"Nodes affected by cleanup, by action.",
				[]string{"action"}),
			mergeGroups: NewCounterVec("planloom_merge_groups_total",
				"Duplicate groups processed by entity type and status.",
				[]string{"entity_type", "status"}),
		}
	})
	return instance
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), route)
}

func (m *Metrics) ObserveStoreOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Inc(operation, status)
	m.storeLatency.Observe(dur.Seconds(), operation)
}

func (m *Metrics) ObserveCleanupRun(action, mode, status string, affected int64) {
	if m == nil {
		return
	}
	m.cleanupRuns.Inc(action, mode, status)
	if affected > 0 {
		m.cleanupNodes.Add(float64(affected), action)
	}
}

func (m *Metrics) ObserveMergeGroup(entityType, status string) {
	if m == nil {
		return
	}
	m.mergeGroups.Inc(entityType, status)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.storeOps, m.storeLatency,
		m.cleanupRuns, m.cleanupNodes, m.mergeGroups,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	c.Add(1, values...)
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return strings.ReplaceAll(v, "\n", "\\n")
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
}
