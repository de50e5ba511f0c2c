package handlers

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

// logMetrics writes every sample in g at verbosity 1. A run is a single
// process, so the log is the only place its metrics can go.
func logMetrics(log logr.Logger, g prometheus.Gatherer) {
	v := log.V(1)
	if !v.Enabled() {
		return
	}
	families, err := g.Gather()
	if err != nil {
		log.Error(err, "failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			kv := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				kv = append(kv, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				kv = append(kv, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				kv = append(kv, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			case m.GetGauge() != nil:
				kv = append(kv, "value", m.GetGauge().GetValue())
			}
			v.Info("metric", kv...)
		}
	}
}
