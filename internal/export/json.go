package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/sim"
	"github.com/san-kum/pidlab/internal/storage"
)

type ExportData struct {
	ID       string             `json:"id,omitempty"`
	Preset   string             `json:"preset"`
	Dt       float64            `json:"dt"`
	Duration float64            `json:"duration"`
	Steps    int                `json:"steps"`
	Target   float64            `json:"target"`
	Gains    dynamo.Gains       `json:"gains"`
	Friction float64            `json:"friction"`
	Metrics  metrics.Transient  `json:"metrics"`
	Aux      map[string]float64 `json:"aux"`
	Samples  []Sample           `json:"samples"`
}

type Sample struct {
	Time        float64 `json:"t"`
	Target      float64 `json:"target"`
	Position    float64 `json:"position"`
	Velocity    float64 `json:"velocity"`
	Error       float64 `json:"error"`
	Output      float64 `json:"output"`
	P           float64 `json:"p"`
	I           float64 `json:"i"`
	D           float64 `json:"d"`
	Disturbance float64 `json:"disturbance"`
}

// WriteJSON writes run metadata and the full trace as indented JSON. Unknown
// metrics are encoded as null.
func WriteJSON(w io.Writer, meta *storage.RunMetadata, result *sim.Result) error {
	data := ExportData{
		ID:       meta.ID,
		Preset:   meta.Preset,
		Dt:       meta.Dt,
		Duration: meta.Duration,
		Steps:    len(result.Samples),
		Target:   meta.Target,
		Gains:    meta.Gains,
		Friction: meta.Friction,
		Metrics:  result.Metrics,
		Aux:      result.Aux,
		Samples:  make([]Sample, len(result.Samples)),
	}
	for i, s := range result.Samples {
		data.Samples[i] = Sample{
			Time:        s.Time,
			Target:      s.Target,
			Position:    s.Position,
			Velocity:    s.Velocity,
			Error:       s.Error,
			Output:      s.Terms.Output,
			P:           s.Terms.P,
			I:           s.Terms.I,
			D:           s.Terms.D,
			Disturbance: s.Disturbance,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
