package automation

import (
	"context"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
)

// MonteCarloConfig defines a disturbance-rejection study: each trial hits the
// loop with one impulse of random size at a random time. Every seed,
// zero included, reproduces the same trials.
type MonteCarloConfig struct {
	NumTrials int
	MaxForce  float64
	Seed      int64
}

// MonteCarloResult holds one trial.
type MonteCarloResult struct {
	TrialID     int
	DisturbAt   float64
	Force       float64
	FinalError  float64
	SteadyState metrics.Value
	Stable      bool // back inside the tolerance band at the end
}

// RunMonteCarlo runs the trials against copies of base. The impulse lands in
// the first half of the run so the loop has time to recover.
func RunMonteCarlo(ctx context.Context, base *config.Config, mc *MonteCarloConfig, log *zap.Logger) ([]MonteCarloResult, error) {
	if mc.NumTrials < 1 {
		return nil, dynamo.Bounds("trials", float64(mc.NumTrials), ">= 1")
	}
	if math.IsNaN(mc.MaxForce) || math.IsInf(mc.MaxForce, 0) || mc.MaxForce < 0 {
		return nil, dynamo.Bounds("max_force", mc.MaxForce, "finite and >= 0")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("monte carlo", zap.Int("trials", mc.NumTrials), zap.Int64("seed", mc.Seed))
	rng := rand.New(rand.NewSource(mc.Seed))

	results := make([]MonteCarloResult, 0, mc.NumTrials)
	for trial := 0; trial < mc.NumTrials; trial++ {
		at := rng.Float64() * base.Duration / 2
		force := (rng.Float64()*2 - 1) * mc.MaxForce

		cfg := *base
		scenario := &Scenario{
			Duration: cfg.Duration,
			Config:   &cfg,
			Events:   []Event{{At: at, Action: "disturbance", Value: force}},
		}
		res, err := RunScenario(ctx, scenario, log)
		if err != nil {
			return results, err
		}

		var final float64
		if n := len(res.Samples); n > 0 {
			last := res.Samples[n-1]
			final = last.Target - last.Position
		}

		results = append(results, MonteCarloResult{
			TrialID:     trial,
			DisturbAt:   at,
			Force:       force,
			FinalError:  final,
			SteadyState: res.Metrics.SteadyStateError,
			Stable:      math.Abs(final) <= metrics.Tolerance,
		})

		if (trial+1)%10 == 0 {
			log.Info("monte carlo progress", zap.Int("done", trial+1), zap.Int("trials", mc.NumTrials))
		}
	}
	return results, nil
}

// MonteCarloStats summarises the trials: stable count, unstable count and
// the mean and standard deviation of the final error.
func MonteCarloStats(results []MonteCarloResult) (stableCount, unstableCount int, mean, std float64) {
	errs := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
		errs = append(errs, r.FinalError)
	}
	if len(errs) > 0 {
		mean = stat.Mean(errs, nil)
	}
	if len(errs) > 1 {
		std = stat.StdDev(errs, nil)
	}
	return
}
