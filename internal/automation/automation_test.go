package automation

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
)

const scenarioYAML = `
name: step and kick
description: step to 75, pause for a second, then kick the cart
duration: 5
config:
  start_position: 50
  target: 50
events:
  - at: 0
    action: target
    value: 75
  - at: 1
    action: pause
  - at: 2
    action: resume
  - at: 3
    action: disturbance
    value: 20
  - at: 3
    action: target
    value: 150
  - at: 4
    action: gains
    gains: {kp: 4, ki: 0.1, kd: 0}
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "step and kick", sc.Name)
	assert.Equal(t, 5.0, sc.Duration)
	assert.Len(t, sc.Events, 6)
	assert.Equal(t, 1.0, sc.Config.Plant.Mass, "defaults kept under overrides")
	assert.Equal(t, 2.0, sc.Config.Gains.Kp)
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	res, err := RunScenario(context.Background(), sc, nil)
	require.NoError(t, err)

	// 300 scenario ticks, 60 of them paused
	assert.Len(t, res.Samples, 240)
	assert.Equal(t, 75.0, res.Samples[0].Target)

	require.Len(t, res.Fired, 6)
	assert.Equal(t, "target", res.Fired[0].Event.Action)
	assert.Equal(t, 3.0, res.Fired[3].Time)
	assert.NoError(t, res.Fired[3].Err)
	assert.ErrorIs(t, res.Fired[4].Err, dynamo.ErrParameterBounds)

	// the pause froze the session clock for one second
	assert.InDelta(t, 4.0-1.0/60, res.Samples[len(res.Samples)-1].Time, 1e-9)

	kicked := false
	for _, s := range res.Samples {
		if s.Disturbance > 0 {
			kicked = true
			break
		}
	}
	assert.True(t, kicked)
	assert.True(t, res.Metrics.RiseTime.IsKnown())
}

func TestRunScenarioPreset(t *testing.T) {
	sc, err := ParseScenario([]byte(`
duration: 1
events:
  - at: 0.5
    action: preset
    preset: too-much-p
`))
	require.NoError(t, err)

	res, err := RunScenario(context.Background(), sc, nil)
	require.NoError(t, err)
	require.Len(t, res.Fired, 1)
	require.NoError(t, res.Fired[0].Err)

	last := res.Samples[len(res.Samples)-1]
	assert.Less(t, last.Time, 0.5, "preset resets the clock")
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  error
	}{
		{"unknown action", "events:\n  - at: 1\n    action: jump\n", dynamo.ErrUnknownParam},
		{"unknown preset", "events:\n  - at: 1\n    action: preset\n    preset: nope\n", dynamo.ErrUnknownPreset},
		{"negative time", "events:\n  - at: -1\n    action: reset\n", dynamo.ErrParameterBounds},
		{"bad config", "config:\n  dt: -1\n", dynamo.ErrInvalidStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := ParseScenario([]byte("events:\n  - at: 1\n    action: gains\n"))
	assert.Error(t, err)
}

func TestRunScenarioCanceled(t *testing.T) {
	sc, err := ParseScenario([]byte("duration: 2\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := RunScenario(ctx, sc, nil)
	assert.ErrorIs(t, err, dynamo.ErrContextCanceled)
	assert.Empty(t, res.Samples)
}

func TestSweepValues(t *testing.T) {
	sw := &ParameterSweep{Param: "kp", Min: 1, Max: 4, NumSteps: 4}
	values, err := sw.Values()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4}, values, 1e-12)

	single := &ParameterSweep{Param: "kp", Min: 2, Max: 9, NumSteps: 1}
	values, err = single.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, values)

	_, err = (&ParameterSweep{Param: "kp", Min: 1, Max: 2}).Values()
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
	_, err = (&ParameterSweep{Param: "kp", Min: 3, Max: 2, NumSteps: 2}).Values()
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestRunSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Target = 75
	base.Duration = 5

	results, err := RunSweep(context.Background(), base, &ParameterSweep{Param: "kd", Min: 0, Max: 1, NumSteps: 3}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0.5, results[1].Value)
	for _, r := range results {
		assert.True(t, r.Metrics.RiseTime.IsKnown())
		assert.Contains(t, r.Aux, "control_effort")
	}
	assert.Equal(t, 0.5, base.Gains.Kd, "base config untouched")

	_, err = RunSweep(context.Background(), base, &ParameterSweep{Param: "mass", Min: 1, Max: 2, NumSteps: 2}, nil)
	assert.ErrorIs(t, err, dynamo.ErrUnknownParam)

	_, err = RunSweep(context.Background(), base, &ParameterSweep{Param: "friction", Min: -1, Max: 0, NumSteps: 2}, nil)
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 2
	mc := &MonteCarloConfig{NumTrials: 4, MaxForce: 30, Seed: 7}

	first, err := RunMonteCarlo(context.Background(), base, mc, nil)
	require.NoError(t, err)
	second, err := RunMonteCarlo(context.Background(), base, mc, nil)
	require.NoError(t, err)

	require.Len(t, first, 4)
	assert.Equal(t, first, second, "seeded runs repeat")
	for _, r := range first {
		assert.GreaterOrEqual(t, r.DisturbAt, 0.0)
		assert.Less(t, r.DisturbAt, 1.0)
		assert.LessOrEqual(t, r.Force, 30.0)
	}

	stable, unstable, _, std := MonteCarloStats(first)
	assert.Equal(t, 4, stable+unstable)
	assert.GreaterOrEqual(t, std, 0.0)
}

func TestRunMonteCarloZeroSeedRepeats(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 1
	mc := &MonteCarloConfig{NumTrials: 2, MaxForce: 30, Seed: 0}

	first, err := RunMonteCarlo(context.Background(), base, mc, nil)
	require.NoError(t, err)
	second, err := RunMonteCarlo(context.Background(), base, mc, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunMonteCarloInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		mc   MonteCarloConfig
	}{
		{"negative trials", MonteCarloConfig{NumTrials: -1, MaxForce: 30, Seed: 1}},
		{"zero trials", MonteCarloConfig{NumTrials: 0, MaxForce: 30, Seed: 1}},
		{"nan force", MonteCarloConfig{NumTrials: 2, MaxForce: math.NaN(), Seed: 1}},
		{"infinite force", MonteCarloConfig{NumTrials: 2, MaxForce: math.Inf(1), Seed: 1}},
		{"negative force", MonteCarloConfig{NumTrials: 2, MaxForce: -5, Seed: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := RunMonteCarlo(context.Background(), config.DefaultConfig(), &tc.mc, nil)
			assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
			assert.Empty(t, results)
		})
	}
}
