package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/sim"
)

type countingObserver struct {
	samples []dynamo.Sample
}

func (c *countingObserver) OnStep(s dynamo.Sample) { c.samples = append(c.samples, s) }

func stepConfig(g dynamo.Gains, friction float64) sim.Config {
	cfg := sim.DefaultConfig()
	cfg.StartPosition = 50
	cfg.Target = 75
	cfg.Gains = g
	cfg.Plant.Friction = friction
	return cfg
}

func newSession(cfg sim.Config, opts ...sim.Option) *sim.Session {
	s, err := sim.New(cfg, opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func errorSignChanges(samples []dynamo.Sample) int {
	changes := 0
	for i := 1; i < len(samples); i++ {
		prev := samples[i-1].Target - samples[i-1].Position
		cur := samples[i].Target - samples[i].Position
		if (prev > 0) != (cur > 0) {
			changes++
		}
	}
	return changes
}

var _ = Describe("Session", func() {
	ctx := context.Background()

	Describe("configuration", func() {
		It("rejects a non-positive step", func() {
			cfg := sim.DefaultConfig()
			cfg.Dt = 0
			_, err := sim.New(cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidStep))
		})

		It("rejects a non-positive mass", func() {
			cfg := sim.DefaultConfig()
			cfg.Plant.Mass = 0
			_, err := sim.New(cfg)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})

		It("rejects a target off the rail", func() {
			cfg := sim.DefaultConfig()
			cfg.Target = 120
			_, err := sim.New(cfg)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})
	})

	Describe("step contract", func() {
		It("runs exactly one update per admitted tick", func() {
			obs := &countingObserver{}
			s := newSession(stepConfig(dynamo.Gains{Kp: 2, Ki: 0.1, Kd: 0.5}, 0.2), sim.WithObserver(obs))

			for i := 0; i < 10; i++ {
				Expect(s.Step()).To(BeTrue())
			}
			Expect(obs.samples).To(HaveLen(10))
			Expect(s.Snapshot().Ticks).To(Equal(10))
			Expect(s.Time()).To(BeNumerically("~", 10.0/60, 1e-12))

			for i, sample := range obs.samples {
				Expect(sample.Time).To(BeNumerically("~", float64(i)/60, 1e-12))
			}
		})

		It("feeds the controller the error before the plant moves", func() {
			obs := &countingObserver{}
			s := newSession(stepConfig(dynamo.Gains{Kp: 2}, 0.2), sim.WithObserver(obs))
			s.Step()

			first := obs.samples[0]
			Expect(first.Error).To(Equal(25.0))
			Expect(first.Terms.P).To(Equal(50.0))
			Expect(first.Position).To(BeNumerically(">", 50.0))
		})

		It("does nothing while paused", func() {
			s := newSession(stepConfig(dynamo.Gains{Kp: 2}, 0.2))
			s.Step()
			s.Pause()
			before := s.Snapshot()

			for i := 0; i < 30; i++ {
				Expect(s.Step()).To(BeFalse())
			}
			after := s.Snapshot()
			Expect(after).To(Equal(before))

			s.Toggle()
			Expect(s.Running()).To(BeTrue())
			Expect(s.Step()).To(BeTrue())
			Expect(s.Time()).To(BeNumerically(">", before.Time))
		})
	})

	Describe("scenarios", func() {
		It("rises before it settles with well-tuned gains", func() {
			s := newSession(stepConfig(dynamo.Gains{Kp: 2.0, Ki: 0.1, Kd: 0.5}, 0.2))
			res, err := s.Run(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(600))

			rise, ok := res.Metrics.RiseTime.Get()
			Expect(ok).To(BeTrue())
			settle, ok := res.Metrics.SettlingTime.Get()
			Expect(ok).To(BeTrue())
			Expect(rise).To(BeNumerically("<", settle))

			sse, ok := res.Metrics.SteadyStateError.Get()
			Expect(ok).To(BeTrue())
			Expect(sse).To(BeNumerically("<", 5))
			Expect(sse).To(BeNumerically("~", math.Abs(75-res.Final().Position), 1e-12))

			over, ok := res.Metrics.Overshoot.Get()
			Expect(ok).To(BeTrue())
			Expect(over).To(BeNumerically(">", 0))
		})

		It("starts sampling steady-state error at the 3 second tick", func() {
			s := newSession(stepConfig(dynamo.Gains{Kp: 2.0, Ki: 0.1, Kd: 0.5}, 0.2))
			for i := 0; i < 180; i++ {
				s.Step()
			}
			Expect(s.Metrics().SteadyStateError.IsKnown()).To(BeFalse())

			s.Step() // the tick at t = 3.0
			sse, ok := s.Metrics().SteadyStateError.Get()
			Expect(ok).To(BeTrue())
			Expect(sse).To(BeNumerically("~", math.Abs(75-s.Snapshot().State.Position), 1e-12))
		})

		It("settles on the target with P-only control and viscous friction", func() {
			s := newSession(stepConfig(dynamo.Gains{Kp: 2.0, Ki: 0, Kd: 0.5}, 0.5))
			res, err := s.Run(ctx, 30)
			Expect(err).NotTo(HaveOccurred())

			for _, sample := range res.Samples {
				Expect(sample.Terms.I).To(BeZero())
			}
			sse, ok := res.Metrics.SteadyStateError.Get()
			Expect(ok).To(BeTrue())
			Expect(sse).To(BeNumerically("<", 0.01))
		})

		It("oscillates around the target without damping", func() {
			s := newSession(stepConfig(dynamo.Gains{Kp: 4.0, Ki: 0.1, Kd: 0}, 0.2))
			res, err := s.Run(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(errorSignChanges(res.Samples)).To(BeNumerically(">=", 2))
		})

		It("keeps the controller output saturated within limits", func() {
			cfg := stepConfig(dynamo.Gains{Kp: 8.0, Ki: 0.1, Kd: 0.5}, 0.2)
			cfg.Target = 100
			s := newSession(cfg)
			res, err := s.Run(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			for _, sample := range res.Samples {
				Expect(sample.Terms.Output).To(And(BeNumerically(">=", -100), BeNumerically("<=", 100)))
				Expect(sample.Position).To(And(BeNumerically(">=", 0), BeNumerically("<=", 100)))
			}
		})
	})

	Describe("commands", func() {
		var s *sim.Session

		BeforeEach(func() {
			s = newSession(stepConfig(dynamo.Gains{Kp: 2.0, Ki: 0.1, Kd: 0.5}, 0.2), sim.WithMetrics(metrics.Standard()...))
			_, err := s.Run(ctx, 4)
			Expect(err).NotTo(HaveOccurred())
		})

		It("restarts metric tracking on a target change", func() {
			Expect(s.Metrics().RiseTime.IsKnown()).To(BeTrue())
			Expect(s.SetTarget(25)).To(Succeed())
			Expect(s.Target()).To(Equal(25.0))
			Expect(s.Metrics()).To(Equal(metrics.Transient{}))

			now := s.Time()
			Expect(now).To(BeNumerically("~", 4.0, 1e-9))
			_, err := s.Run(ctx, 4)
			Expect(err).NotTo(HaveOccurred())
			rise, ok := s.Metrics().RiseTime.Get()
			Expect(ok).To(BeTrue())
			Expect(rise).To(BeNumerically("<", 4.0))
		})

		It("rejects targets off the rail", func() {
			Expect(s.SetTarget(-1)).To(MatchError(dynamo.ErrParameterBounds))
			Expect(s.SetTarget(math.NaN())).To(MatchError(dynamo.ErrParameterBounds))
			Expect(s.Target()).To(Equal(75.0))
		})

		It("resets to rest at the current position", func() {
			pos := s.Snapshot().State.Position
			s.AddDisturbance(30)
			s.Reset()

			v := s.Snapshot()
			Expect(v.State).To(Equal(dynamo.CartState{Position: pos}))
			Expect(v.Time).To(BeZero())
			Expect(v.Metrics).To(Equal(metrics.Transient{}))
			Expect(s.History()).To(BeEmpty())
			Expect(s.Controller().Integral()).To(BeZero())
			Expect(s.Aux()["iae"]).To(BeZero())

			s.Reset()
			Expect(s.Snapshot()).To(Equal(v))
		})

		It("applies a preset and resets", func() {
			p := dynamo.Preset{Name: "no-damping", Kp: 4, Ki: 0.1, Kd: 0, Friction: 0.2}
			Expect(s.ApplyPreset(p)).To(Succeed())
			Expect(s.Gains()).To(Equal(dynamo.Gains{Kp: 4, Ki: 0.1, Kd: 0}))
			Expect(s.Snapshot().Friction).To(Equal(0.2))
			Expect(s.Time()).To(BeZero())

			bad := dynamo.Preset{Name: "bad", Friction: -1}
			Expect(s.ApplyPreset(bad)).To(MatchError(dynamo.ErrParameterBounds))
		})

		It("injects the default disturbance impulse", func() {
			s.Disturb()
			Expect(s.Snapshot().State.Disturbance).To(Equal(30.0))
			s.Step()
			Expect(s.Snapshot().State.Disturbance).To(BeNumerically("~", 28.5, 1e-12))
		})

		It("changes friction from the next tick", func() {
			Expect(s.SetFriction(0.9)).To(Succeed())
			Expect(s.Cart().Friction).To(Equal(0.9))
			Expect(s.SetFriction(-0.1)).To(MatchError(dynamo.ErrParameterBounds))
		})

		It("tracks auxiliary metrics", func() {
			aux := s.Aux()
			Expect(aux).To(HaveKey("control_effort"))
			Expect(aux["iae"]).To(BeNumerically(">", 0))
			Expect(aux["error_std"]).To(BeNumerically(">", 0))
		})
	})

	Describe("auto-step", func() {
		It("alternates the target on a fixed interval", func() {
			s := newSession(stepConfig(dynamo.Gains{Kp: 2.0, Ki: 0.1, Kd: 0.5}, 0.2))
			Expect(s.SetAutoStep(true)).To(Succeed())
			Expect(s.Target()).To(Equal(25.0))
			Expect(s.SetTarget(60)).To(MatchError(dynamo.ErrAutoStepActive))

			for i := 0; i < 299; i++ {
				s.Step()
			}
			Expect(s.Target()).To(Equal(25.0))
			s.Step()
			Expect(s.Target()).To(Equal(75.0))

			for i := 0; i < 300; i++ {
				s.Step()
			}
			Expect(s.Target()).To(Equal(25.0))

			Expect(s.SetAutoStep(false)).To(Succeed())
			Expect(s.SetTarget(60)).To(Succeed())
		})

		It("does not advance while paused", func() {
			cfg := stepConfig(dynamo.Gains{Kp: 2.0}, 0.2)
			cfg.AutoStep.Enabled = true
			s := newSession(cfg)
			Expect(s.AutoStep()).To(BeTrue())
			s.Pause()
			for i := 0; i < 600; i++ {
				s.Step()
			}
			Expect(s.Target()).To(Equal(25.0))
		})
	})

	Describe("history", func() {
		It("keeps the most recent samples in order", func() {
			cfg := stepConfig(dynamo.Gains{Kp: 2.0}, 0.2)
			cfg.History = 100
			s := newSession(cfg)
			for i := 0; i < 250; i++ {
				s.Step()
			}
			h := s.History()
			Expect(h).To(HaveLen(100))
			Expect(h[0].Time).To(BeNumerically("~", 150.0/60, 1e-9))
			for i := 1; i < len(h); i++ {
				Expect(h[i].Time).To(BeNumerically(">", h[i-1].Time))
			}
		})
	})

	Describe("Run", func() {
		It("stops on a cancelled context", func() {
			s := newSession(sim.DefaultConfig())
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			res, err := s.Run(cctx, 10)
			Expect(err).To(MatchError(dynamo.ErrContextCanceled))
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.StepsTaken).To(BeZero())
		})

		It("rejects a non-positive duration", func() {
			s := newSession(sim.DefaultConfig())
			_, err := s.Run(ctx, 0)
			Expect(err).To(HaveOccurred())
		})

		It("runs while paused", func() {
			s := newSession(sim.DefaultConfig())
			s.Pause()
			res, err := s.Run(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(60))
		})
	})
})
