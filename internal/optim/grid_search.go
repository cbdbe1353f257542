package optim

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/experiment"
	"github.com/san-kum/pidlab/internal/metrics"
)

// GridSearch evaluates every combination of candidate gains. An empty axis
// keeps the base configuration's gain.
type GridSearch struct {
	Kp, Ki, Kd []float64
	Limit      int
	Log        *zap.Logger
}

// Candidate is one evaluated gain set.
type Candidate struct {
	Gains dynamo.Gains
	Score metrics.Value
}

func NewGridSearch(kp, ki, kd []float64) *GridSearch {
	return &GridSearch{Kp: kp, Ki: ki, Kd: kd}
}

// Candidates enumerates the grid with kd varying fastest.
func (g *GridSearch) Candidates(base dynamo.Gains) []dynamo.Gains {
	axis := func(vals []float64, def float64) []float64 {
		if len(vals) == 0 {
			return []float64{def}
		}
		return vals
	}
	kps, kis, kds := axis(g.Kp, base.Kp), axis(g.Ki, base.Ki), axis(g.Kd, base.Kd)

	out := make([]dynamo.Gains, 0, len(kps)*len(kis)*len(kds))
	for _, kp := range kps {
		for _, ki := range kis {
			for _, kd := range kds {
				out = append(out, dynamo.Gains{Kp: kp, Ki: ki, Kd: kd})
			}
		}
	}
	return out
}

// Search runs every candidate on a fresh session built from base and ranks
// them by the named objective, lower first. Unknown scores rank last and ties
// keep enumeration order. The returned slice is ranked; its first element is
// the best candidate.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective string) ([]Candidate, error) {
	score, err := experiment.GetObjective(objective)
	if err != nil {
		return nil, err
	}
	log := g.Log
	if log == nil {
		log = zap.NewNop()
	}

	grid := g.Candidates(base.Gains)
	ranked := make([]Candidate, len(grid))

	limit := g.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, gains := range grid {
		i, gains := i, gains
		eg.Go(func() error {
			cfg := *base
			cfg.Gains = gains
			res, err := experiment.RunConfig(ctx, &cfg, nil)
			if err != nil {
				return fmt.Errorf("candidate %+v: %w", gains, err)
			}
			ranked[i] = Candidate{Gains: gains, Score: score(res)}
			log.Debug("candidate evaluated", zap.Int("index", i), zap.Stringer("score", ranked[i].Score))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool { return better(ranked[i], ranked[j]) })
	return ranked, nil
}

func better(a, b Candidate) bool {
	av, aok := a.Score.Get()
	bv, bok := b.Score.Get()
	switch {
	case aok && !bok:
		return true
	case !aok:
		return false
	}
	return av < bv
}
