package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/sim"
)

// Experiment is one headless run of a configured session.
type Experiment struct {
	cfg     *config.Config
	log     *zap.Logger
	session *sim.Session
}

func New(cfg *config.Config, log *zap.Logger) *Experiment {
	if log == nil {
		log = zap.NewNop()
	}
	return &Experiment{cfg: cfg, log: log}
}

// Setup builds the session with the standard auxiliary metrics plus any
// extra observers.
func (e *Experiment) Setup(observers ...dynamo.Observer) error {
	sc, err := e.cfg.Sim()
	if err != nil {
		return err
	}

	opts := []sim.Option{
		sim.WithLogger(e.log),
		sim.WithMetrics(DefaultMetrics()...),
	}
	for _, o := range observers {
		opts = append(opts, sim.WithObserver(o))
	}

	s, err := sim.New(sc, opts...)
	if err != nil {
		return err
	}
	e.session = s
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.session == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.session.Run(ctx, e.cfg.Duration)
}

// Session returns the underlying session for scripting commands between runs.
func (e *Experiment) Session() *sim.Session {
	return e.session
}

func (e *Experiment) Config() *config.Config {
	return e.cfg
}

// RunConfig sets up and runs cfg in one call.
func RunConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sim.Result, error) {
	exp := New(cfg, log)
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}
