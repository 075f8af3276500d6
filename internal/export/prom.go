package export

import (
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/httpdwatch/httpdwatch/internal/metric"
)

// WriteExposition encodes the store's live series to w in the Prometheus
// text exposition format, grouped into one MetricFamily per series name.
func WriteExposition(w io.Writer, metrics []metric.Metric) error {
	families := buildFamilies(metrics)

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, name := range names {
		if err := enc.Encode(families[name]); err != nil {
			return err
		}
	}
	return nil
}

// buildFamilies groups samples by name into dto.MetricFamily values.
// All samples of one name share a type by construction — the status parser
// never emits the same suffix as both counter and gauge.
func buildFamilies(metrics []metric.Metric) map[string]*dto.MetricFamily {
	families := make(map[string]*dto.MetricFamily)
	for i := range metrics {
		m := metrics[i]
		mf, ok := families[m.Name]
		if !ok {
			mf = &dto.MetricFamily{
				Name: strPtr(m.Name),
				Type: familyType(m.Type),
			}
			families[m.Name] = mf
		}
		mf.Metric = append(mf.Metric, toDTO(m))
	}
	return families
}

func familyType(t metric.Type) *dto.MetricType {
	if t == metric.Counter {
		return dto.MetricType_COUNTER.Enum()
	}
	return dto.MetricType_GAUGE.Enum()
}

func toDTO(m metric.Metric) *dto.Metric {
	out := &dto.Metric{
		Label:       toLabels(m.Tags),
		TimestampMs: int64Ptr(m.Timestamp.UnixMilli()),
	}
	if m.Type == metric.Counter {
		out.Counter = &dto.Counter{Value: floatPtr(m.Value)}
	} else {
		out.Gauge = &dto.Gauge{Value: floatPtr(m.Value)}
	}
	return out
}

// toLabels converts a tag map into a sorted label-pair list.
func toLabels(tags map[string]string) []*dto.LabelPair {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*dto.LabelPair, 0, len(keys))
	for _, k := range keys {
		out = append(out, &dto.LabelPair{Name: strPtr(k), Value: strPtr(tags[k])})
	}
	return out
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }
