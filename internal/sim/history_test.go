package sim

import (
	"testing"

	"github.com/san-kum/pidlab/internal/dynamo"
)

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	if h.Len() != 0 || len(h.Samples()) != 0 {
		t.Fatal("new history not empty")
	}

	for i := 0; i < 5; i++ {
		h.Push(dynamo.Sample{Time: float64(i)})
	}

	got := h.Samples()
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, want := range []float64{2, 3, 4} {
		if got[i].Time != want {
			t.Errorf("sample %d: time %f, want %f", i, got[i].Time, want)
		}
	}

	h.Clear()
	if h.Len() != 0 {
		t.Error("clear did not empty history")
	}
}

func TestHistoryZeroCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Push(dynamo.Sample{Time: 1})
	if h.Len() != 0 {
		t.Error("zero-capacity history retained a sample")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		valid bool
	}{
		{"default", func(c *Config) {}, true},
		{"negative dt", func(c *Config) { c.Dt = -0.1 }, false},
		{"start off rail", func(c *Config) { c.StartPosition = 101 }, false},
		{"negative history", func(c *Config) { c.History = -1 }, false},
		{"zero interval", func(c *Config) { c.AutoStep.Interval = 0 }, false},
		{"auto-step off rail", func(c *Config) { c.AutoStep.Positions = []float64{25, 175} }, false},
		{"auto-step without positions", func(c *Config) { c.AutoStep = AutoStep{Enabled: true, Interval: 5} }, false},
		{"no auto-step at all", func(c *Config) { c.AutoStep = AutoStep{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.valid {
				t.Errorf("Validate() = %v, valid want %v", err, tt.valid)
			}
		})
	}
}
