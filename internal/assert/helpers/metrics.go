package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/metrics"
)

// CounterValue sums the named counter across its series. Labels are given
// as name/value pairs and restrict the sum to matching series
func CounterValue(
	t *testing.T, m *metrics.Metrics, name string, labels ...string,
) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	assert.NoError(t, err)

	want := map[string]string{}
	for i := 0; i+1 < len(labels); i += 2 {
		want[labels[i]] = labels[i+1]
	}

	var res float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, metric := range mf.GetMetric() {
			matched := 0
			for _, lp := range metric.GetLabel() {
				if v, ok := want[lp.GetName()]; ok {
					if v != lp.GetValue() {
						continue series
					}
					matched++
				}
			}
			if matched == len(want) {
				res += metric.GetCounter().GetValue()
			}
		}
	}
	return res
}
