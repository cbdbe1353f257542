package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/sim"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
)

var traceHeader = []string{
	"time", "target", "position", "velocity", "error",
	"output", "p", "i", "d", "disturbance",
}

type Store struct {
	baseDir string
	now     func() time.Time
	create  func(path string) (io.WriteCloser, error)
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now, create: createFile}
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Preset        string             `json:"preset"`
	Timestamp     time.Time          `json:"timestamp"`
	Dt            float64            `json:"dt"`
	Duration      float64            `json:"duration"`
	Steps         int                `json:"steps"`
	StartPosition float64            `json:"start_position"`
	Target        float64            `json:"target"`
	Gains         dynamo.Gains       `json:"gains"`
	Friction      float64            `json:"friction"`
	Derivative    string             `json:"derivative"`
	Metrics       metrics.Transient  `json:"metrics"`
	Aux           map[string]float64 `json:"aux"`
}

// Save writes the run under <label>_<unix-nanos> and returns the run ID.
// meta.ID and meta.Timestamp are filled in.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := s.now()
	label := meta.Preset
	if label == "" {
		label = "custom"
	}
	runID := fmt.Sprintf("%s_%d", label, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Steps = result.StepsTaken
	meta.Metrics = result.Metrics
	meta.Aux = result.Aux

	err := s.writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		return writeMetadata(w, &meta)
	})
	if err != nil {
		return "", err
	}
	err = s.writeFile(filepath.Join(runDir, traceFile), func(w io.Writer) error {
		return writeTrace(w, result.Samples)
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// writeFile creates path and hands it to write. A failed Close is reported
// when the write itself succeeded.
func (s *Store) writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := s.create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()
	return write(f)
}

func writeMetadata(w io.Writer, meta *RunMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeTrace(out io.Writer, samples []dynamo.Sample) error {
	w := csv.NewWriter(out)
	if err := w.Write(traceHeader); err != nil {
		return err
	}

	row := make([]string, len(traceHeader))
	for _, smp := range samples {
		for i, v := range []float64{
			smp.Time, smp.Target, smp.Position, smp.Velocity, smp.Error,
			smp.Terms.Output, smp.Terms.P, smp.Terms.I, smp.Terms.D, smp.Disturbance,
		} {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the metadata of every stored run, oldest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrace reads the per-tick samples of a run.
func (s *Store) LoadTrace(runID string) ([]dynamo.Sample, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(traceHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s trace: %w", runID, err)
	}
	if len(records) < 2 {
		return []dynamo.Sample{}, nil
	}

	samples := make([]dynamo.Sample, 0, len(records)-1)
	for n, record := range records[1:] {
		var v [10]float64
		for i, field := range record {
			v[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s trace line %d: %w", runID, n+2, err)
			}
		}
		samples = append(samples, dynamo.Sample{
			Time:        v[0],
			Target:      v[1],
			Position:    v[2],
			Velocity:    v[3],
			Error:       v[4],
			Terms:       dynamo.Terms{Output: v[5], P: v[6], I: v[7], D: v[8]},
			Disturbance: v[9],
		})
	}
	return samples, nil
}
