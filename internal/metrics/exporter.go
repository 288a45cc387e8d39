package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Exporter owns the process meter provider and serves its state in the
// Prometheus text exposition format on every scrape.
type Exporter struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

func NewExporter() *Exporter {
	reader := sdkmetric.NewManualReader()
	return &Exporter{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

// MeterProvider returns the SDK provider backing the exporter.
func (e *Exporter) MeterProvider() metric.MeterProvider { return e.provider }

// Meter returns a meter whose instruments are exported.
func (e *Exporter) Meter(name string) metric.Meter { return e.provider.Meter(name) }

// Handler collects and renders the current metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rm metricdata.ResourceMetrics
		if err := e.reader.Collect(r.Context(), &rm); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(Render(&rm)))
	})
}

// Shutdown flushes and stops the provider. Later scrapes fail.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

// Render writes rm in Prometheus text exposition format. Dots in instrument
// names become underscores, monotonic sums get a _total suffix and the unit,
// when set, is appended to the name.
func Render(rm *metricdata.ResourceMetrics) string {
	var b strings.Builder
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			writeMetric(&b, m)
		}
	}
	return b.String()
}

func writeMetric(b *strings.Builder, m metricdata.Metrics) {
	name := promName(m.Name)
	if m.Unit != "" && m.Unit != "1" {
		name += "_" + promName(m.Unit)
	}
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		name, kind := sumName(name, data.IsMonotonic)
		writeHeader(b, name, m.Description, kind)
		writePoints(b, name, data.DataPoints)
	case metricdata.Sum[float64]:
		name, kind := sumName(name, data.IsMonotonic)
		writeHeader(b, name, m.Description, kind)
		writePoints(b, name, data.DataPoints)
	case metricdata.Gauge[int64]:
		writeHeader(b, name, m.Description, "gauge")
		writePoints(b, name, data.DataPoints)
	case metricdata.Gauge[float64]:
		writeHeader(b, name, m.Description, "gauge")
		writePoints(b, name, data.DataPoints)
	case metricdata.Histogram[float64]:
		writeHeader(b, name, m.Description, "histogram")
		for _, dp := range data.DataPoints {
			labels := labelPairs(dp.Attributes)
			var cumulative uint64
			for i, bound := range dp.Bounds {
				cumulative += dp.BucketCounts[i]
				writeSample(b, name+"_bucket", withLabel(labels, "le", formatNumber(bound)), strconv.FormatUint(cumulative, 10))
			}
			writeSample(b, name+"_bucket", withLabel(labels, "le", "+Inf"), strconv.FormatUint(dp.Count, 10))
			writeSample(b, name+"_sum", labels, formatNumber(dp.Sum))
			writeSample(b, name+"_count", labels, strconv.FormatUint(dp.Count, 10))
		}
	}
}

func sumName(name string, monotonic bool) (string, string) {
	if monotonic {
		return name + "_total", "counter"
	}
	return name, "gauge"
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	if help != "" {
		b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	}
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writePoints[N int64 | float64](b *strings.Builder, name string, points []metricdata.DataPoint[N]) {
	for _, dp := range points {
		writeSample(b, name, labelPairs(dp.Attributes), formatNumber(dp.Value))
	}
}

func writeSample(b *strings.Builder, name string, labels []string, value string) {
	b.WriteString(name)
	if len(labels) > 0 {
		b.WriteString("{" + strings.Join(labels, ",") + "}")
	}
	b.WriteString(" " + value + "\n")
}

// labelPairs renders attributes in their sorted set order.
func labelPairs(set attribute.Set) []string {
	out := make([]string, 0, set.Len())
	it := set.Iter()
	for it.Next() {
		kv := it.Attribute()
		out = append(out, promName(string(kv.Key))+`="`+escapeLabel(kv.Value.Emit())+`"`)
	}
	return out
}

func withLabel(labels []string, key, value string) []string {
	out := make([]string, 0, len(labels)+1)
	out = append(out, labels...)
	return append(out, key+`="`+escapeLabel(value)+`"`)
}

func formatNumber[N int64 | float64](v N) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

func promName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		}
		return '_'
	}, s)
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
