package inbound

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikolajkapica/gister/core"
)

// PrometheusRecorder adapts a prometheus registry to the MetricsRecorder
// contract. Vectors are registered lazily on first observation; the label
// set seen first for a metric name fixes its schema.
type PrometheusRecorder struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

func NewPrometheusRecorder(registerer prometheus.Registerer) *PrometheusRecorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusRecorder{
		registerer: registerer,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		labels:     map[string][]string{},
	}
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	metricName := sanitizeMetricName(name)
	if metricName == "" {
		return
	}

	r.mu.Lock()
	counter, ok := r.counters[metricName]
	if !ok {
		labelNames := sortedTagKeys(tags)
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricName,
			Help: "Counter for " + metricName,
		}, labelNames)
		if err := r.registerer.Register(counter); err != nil {
			if already, isDup := err.(prometheus.AlreadyRegisteredError); isDup {
				counter = already.ExistingCollector.(*prometheus.CounterVec)
			} else {
				r.mu.Unlock()
				return
			}
		}
		r.counters[metricName] = counter
		r.labels[metricName] = labelNames
	}
	labelValues := r.labelValuesLocked(metricName, tags)
	r.mu.Unlock()

	if metric, err := counter.GetMetricWithLabelValues(labelValues...); err == nil {
		metric.Add(float64(value))
	}
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metricName := sanitizeMetricName(name)
	if metricName == "" {
		return
	}

	r.mu.Lock()
	histogram, ok := r.histograms[metricName]
	if !ok {
		labelNames := sortedTagKeys(tags)
		histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricName,
			Help:    "Histogram for " + metricName,
			Buckets: prometheus.DefBuckets,
		}, labelNames)
		if err := r.registerer.Register(histogram); err != nil {
			if already, isDup := err.(prometheus.AlreadyRegisteredError); isDup {
				histogram = already.ExistingCollector.(*prometheus.HistogramVec)
			} else {
				r.mu.Unlock()
				return
			}
		}
		r.histograms[metricName] = histogram
		r.labels[metricName] = labelNames
	}
	labelValues := r.labelValuesLocked(metricName, tags)
	r.mu.Unlock()

	if metric, err := histogram.GetMetricWithLabelValues(labelValues...); err == nil {
		metric.Observe(value)
	}
}

func (r *PrometheusRecorder) labelValuesLocked(metricName string, tags map[string]string) []string {
	labelNames := r.labels[metricName]
	values := make([]string, len(labelNames))
	for i, label := range labelNames {
		values[i] = tags[label]
	}
	return values
}

func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sanitizeMetricName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
