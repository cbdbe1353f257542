package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/sim"
	"github.com/san-kum/pidlab/internal/storage"
)

func testResult() *sim.Result {
	samples := make([]dynamo.Sample, 30)
	for i := range samples {
		samples[i] = dynamo.Sample{
			Time:     float64(i) / 60,
			Target:   75,
			Position: 50 + float64(i),
			Error:    25 - float64(i),
			Terms:    dynamo.Terms{Output: 10, P: 8, I: 1, D: 1},
		}
	}
	return &sim.Result{
		Samples:    samples,
		Metrics:    metrics.Transient{RiseTime: metrics.Known(0.38)},
		Aux:        map[string]float64{"iae": 3.2},
		StepsTaken: len(samples),
	}
}

func TestWriteJSON(t *testing.T) {
	meta := &storage.RunMetadata{ID: "well-tuned_1", Preset: "well-tuned", Dt: 1.0 / 60, Target: 75,
		Gains: dynamo.Gains{Kp: 2, Ki: 0.1, Kd: 0.5}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, meta, testResult()))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "well-tuned_1", raw["id"])
	assert.EqualValues(t, 30, raw["steps"])

	m := raw["metrics"].(map[string]any)
	assert.InDelta(t, 0.38, m["rise_time"], 1e-12)
	assert.Nil(t, m["settling_time"])
	assert.Contains(t, m, "settling_time")

	var decoded ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Samples, 30)
	assert.Equal(t, 52.0, decoded.Samples[2].Position)
	assert.Equal(t, 8.0, decoded.Samples[2].P)
	assert.False(t, decoded.Metrics.Overshoot.IsKnown())
}

func TestSaveCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	require.NoError(t, SaveCharts(dir, testResult().Samples))

	for _, name := range []string{"position.png", "error.png", "terms.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		require.Greater(t, len(data), 8)
		assert.Equal(t, []byte("\x89PNG"), data[:4], name)
	}
}

func TestSaveChartsEmpty(t *testing.T) {
	assert.Error(t, SaveCharts(t.TempDir(), nil))
}
