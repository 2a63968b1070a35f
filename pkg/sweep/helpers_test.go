package sweep_test

import (
	dto "github.com/prometheus/client_model/go"
)

func runs(mfs []*dto.MetricFamily) float64 {
	for _, mf := range mfs {
		if mf.GetName() != "amane_sweep_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
