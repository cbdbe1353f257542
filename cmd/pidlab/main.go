package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/pidlab/internal/analysis"
	"github.com/san-kum/pidlab/internal/automation"
	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/experiment"
	"github.com/san-kum/pidlab/internal/export"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/optim"
	"github.com/san-kum/pidlab/internal/sim"
	"github.com/san-kum/pidlab/internal/storage"
	"github.com/san-kum/pidlab/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	dt         float64
	duration   float64
	startPos   float64
	target     float64
	kp         float64
	ki         float64
	kd         float64
	friction   float64
	derivative string
	autoStep   bool
	// sweep
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	// tune
	kpList    string
	kiList    string
	kdList    string
	objective string
	top       int
	workers   int
	// monte carlo
	trials   int
	maxForce float64
	seed     int64
	// output
	outPath string
	save    bool
)

var log = zap.NewNop()

// main registers commands and flags; with no subcommand it opens the
// interactive preset menu.
func main() {
	rootCmd := &cobra.Command{
		Use:   "pidlab",
		Short: "PID cart control playground",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
		RunE: runInteractive,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pidlab", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	addSimFlags(rootCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the cart with live visualization",
		RunE:  runLive,
	}
	addSimFlags(liveCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless step response and save it",
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of the tracking error",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and trace as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render PNG charts of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVarP(&outPath, "out", "o", "charts", "output directory")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list tuning presets",
		RunE:  listPresets,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file.yaml]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&save, "save", false, "save the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one gain or the friction",
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "kp", "kp, ki, kd or friction")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 8, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 8, "number of values")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search gains against an objective",
		RunE:  runTune,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&kpList, "kp-grid", "1,2,4,8", "comma separated kp candidates")
	tuneCmd.Flags().StringVar(&kiList, "ki-grid", "0,0.1,0.5", "comma separated ki candidates")
	tuneCmd.Flags().StringVar(&kdList, "kd-grid", "0,0.5,1,2", "comma separated kd candidates")
	tuneCmd.Flags().StringVar(&objective, "objective", "settling_time", "one of "+strings.Join(experiment.ListObjectives(), ", "))
	tuneCmd.Flags().IntVar(&top, "top", 5, "candidates to print")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "random disturbance rejection trials",
		RunE:  runMonteCarlo,
	}
	addSimFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	monteCarloCmd.Flags().Float64Var(&maxForce, "force", 60, "largest impulse")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: time based, printed)")

	rootCmd.AddCommand(liveCmd, runCmd, listCmd, plotCmd, analyzeCmd, exportJSONCmd, chartCmd,
		presetsCmd, scenarioCmd, sweepCmd, tuneCmd, monteCarloCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "tuning preset")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Float64Var(&startPos, "start", 50, "start position")
	cmd.Flags().Float64Var(&target, "target", 75, "target position")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	cmd.Flags().Float64Var(&friction, "friction", 0.2, "viscous friction")
	cmd.Flags().StringVar(&derivative, "derivative", "error", "derivative on error or measurement")
	cmd.Flags().BoolVar(&autoStep, "auto-step", false, "alternate the target every interval")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// loadConfig layers defaults, the config file, the preset and explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	// without a config file the default run is a step from 50 to 75
	cfg.Target = target
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(config.PresetNames(), ", "))
		}
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Duration = duration
	}
	if f.Changed("start") {
		cfg.StartPosition = startPos
	}
	if f.Changed("target") {
		cfg.Target = target
	}
	if f.Changed("kp") {
		cfg.Gains.Kp = kp
	}
	if f.Changed("ki") {
		cfg.Gains.Ki = ki
	}
	if f.Changed("kd") {
		cfg.Gains.Kd = kd
	}
	if f.Changed("friction") {
		cfg.Plant.Friction = friction
	}
	if f.Changed("derivative") {
		cfg.Derivative = derivative
	}
	if f.Changed("auto-step") {
		cfg.AutoStep.Enabled = autoStep
	}
	if f.Changed("kp") || f.Changed("ki") || f.Changed("kd") || f.Changed("friction") {
		cfg.Preset = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSession(cmd *cobra.Command) (*sim.Session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	sc, err := cfg.Sim()
	if err != nil {
		return nil, err
	}
	// the full-screen UI owns the terminal
	return sim.New(sc, sim.WithMetrics(experiment.DefaultMetrics()...))
}

func presetList() []dynamo.Preset {
	names := config.PresetNames()
	out := make([]dynamo.Preset, len(names))
	for i, n := range names {
		out[i] = config.Presets[n]
	}
	return out
}

func runInteractive(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	return viz.RunInteractive(s, presetList())
}

func runLive(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	return viz.RunLive(s, presetList())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func metadataFor(cfg *config.Config) storage.RunMetadata {
	return storage.RunMetadata{
		Preset:        cfg.Label(),
		Dt:            cfg.Dt,
		Duration:      cfg.Duration,
		StartPosition: cfg.StartPosition,
		Target:        cfg.Target,
		Gains:         cfg.Gains,
		Friction:      cfg.Plant.Friction,
		Derivative:    cfg.Derivative,
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s: %.1f -> %.1f for %.1fs...\n", cfg.Label(), cfg.StartPosition, cfg.Target, cfg.Duration)
	start := time.Now()

	result, err := experiment.RunConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(metadataFor(cfg), result)
	if err != nil {
		return err
	}
	log.Debug("run saved", zap.String("id", runID), zap.Int("steps", result.StepsTaken))

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	printMetrics(result.Metrics, result.Aux)
	return nil
}

func printMetrics(m metrics.Transient, aux map[string]float64) {
	fmt.Println("\nmetrics:")
	fmt.Printf("  rise time:          %s\n", withUnit(m.RiseTime, "s"))
	fmt.Printf("  settling time:      %s\n", withUnit(m.SettlingTime, "s"))
	fmt.Printf("  overshoot:          %s\n", withUnit(m.Overshoot, "%"))
	fmt.Printf("  steady-state error: %s\n", m.SteadyStateError)

	names := make([]string, 0, len(aux))
	for name := range aux {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.4f\n", name, aux[name])
	}
}

func withUnit(v metrics.Value, unit string) string {
	if !v.IsKnown() {
		return v.String()
	}
	return v.String() + unit
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tGAINS\tTARGET\tRISE\tSETTLE\tOVERSHOOT\tTIME")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2f/%.2f/%.2f\t%.1f\t%s\t%s\t%s\t%s\n",
			r.ID, r.Preset, r.Gains.Kp, r.Gains.Ki, r.Gains.Kd, r.Target,
			r.Metrics.RiseTime, r.Metrics.SettlingTime, r.Metrics.Overshoot,
			r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, *sim.Result, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	samples, err := st.LoadTrace(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, &sim.Result{
		Samples:    samples,
		Metrics:    meta.Metrics,
		Aux:        meta.Aux,
		StepsTaken: meta.Steps,
	}, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(result.Samples) == 0 {
		return fmt.Errorf("no data in run")
	}

	n := len(result.Samples)
	pos, tgt, errs, out := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, s := range result.Samples {
		pos[i], tgt[i], errs[i], out[i] = s.Position, s.Target, s.Error, s.Terms.Output
	}

	fmt.Printf("run %s (kp %.2f ki %.2f kd %.2f)\n\n", meta.ID, meta.Gains.Kp, meta.Gains.Ki, meta.Gains.Kd)
	fmt.Println(asciigraph.PlotMany([][]float64{tgt, pos},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Cyan),
		asciigraph.Caption("target / position")))
	fmt.Println()
	fmt.Println(asciigraph.Plot(errs,
		asciigraph.Height(6),
		asciigraph.Width(80),
		asciigraph.Caption("error")))
	fmt.Println()
	fmt.Println(asciigraph.Plot(out,
		asciigraph.Height(6),
		asciigraph.Width(80),
		asciigraph.Caption("controller output")))
	printMetrics(result.Metrics, result.Aux)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	spectrum, err := analysis.ErrorSpectrum(result.Samples)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n\n", meta.ID)

	// the interesting oscillations sit well below Nyquist
	hi := len(spectrum.Amplitude) / 4
	if hi < 3 {
		hi = len(spectrum.Amplitude)
	}
	plotData := spectrum.Amplitude[1:hi]
	fmt.Println(asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("error amplitude spectrum")))

	freq, amp := spectrum.Dominant()
	fmt.Printf("\ndominant: %.3f Hz (period %.2fs), amplitude %.3f\n", freq, 1/freq, amp)
	fmt.Printf("target crossings: %d\n", analysis.ZeroCrossings(result.Samples))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return export.WriteJSON(os.Stdout, meta, result)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.WriteJSON(f, meta, result); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

func chartRun(cmd *cobra.Command, args []string) error {
	_, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if err := export.SaveCharts(outPath, result.Samples); err != nil {
		return err
	}
	fmt.Printf("charts written to %s\n", outPath)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tKP\tKI\tKD\tFRICTION\tEXPECTED")
	for i, p := range presetList() {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.2f\t%.1f\t%.2f\t%s\n", i+1, p.Name, p.Kp, p.Ki, p.Kd, p.Friction, p.Expected)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("scenario %s: %s\n", sc.Name, sc.Description)
	res, err := automation.RunScenario(ctx, sc, log)
	if err != nil {
		return err
	}

	for _, f := range res.Fired {
		status := "ok"
		if f.Err != nil {
			status = f.Err.Error()
		}
		fmt.Printf("  t=%6.2fs  %-12s %8.2f  %s\n", f.Time, f.Event.Action, f.Event.Value, status)
	}
	fmt.Printf("samples: %d\n", len(res.Samples))
	printMetrics(res.Metrics, res.Aux)

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := metadataFor(sc.Config)
		meta.Duration = sc.Duration
		runID, err := st.Save(meta, &sim.Result{
			Samples:    res.Samples,
			Metrics:    res.Metrics,
			Aux:        res.Aux,
			StepsTaken: len(res.Samples),
		})
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	sweep := &automation.ParameterSweep{Param: sweepParam, Min: sweepMin, Max: sweepMax, NumSteps: sweepSteps}
	results, err := automation.RunSweep(ctx, cfg, sweep, log)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tRISE\tSETTLE\tOVERSHOOT\tSS ERROR\tIAE\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\t%.3f\n", r.Value,
			r.Metrics.RiseTime, r.Metrics.SettlingTime, r.Metrics.Overshoot, r.Metrics.SteadyStateError, r.Aux["iae"])
	}
	return w.Flush()
}

func parseList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	grids := make([][]float64, 3)
	for i, s := range []string{kpList, kiList, kdList} {
		if grids[i], err = parseList(s); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	gs := optim.NewGridSearch(grids[0], grids[1], grids[2])
	gs.Limit = workers
	gs.Log = log

	start := time.Now()
	ranked, err := gs.Search(ctx, cfg, objective)
	if err != nil {
		return err
	}
	fmt.Printf("evaluated %d candidates in %v\n\n", len(ranked), time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tKP\tKI\tKD\t%s\n", strings.ToUpper(objective))
	for i, c := range ranked {
		if i >= top {
			break
		}
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%s\n", i+1, c.Gains.Kp, c.Gains.Ki, c.Gains.Kd, c.Score)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if !cmd.Flags().Changed("seed") {
		seed = time.Now().UnixNano()
	}
	fmt.Printf("seed: %d\n", seed)

	results, err := automation.RunMonteCarlo(ctx, cfg, &automation.MonteCarloConfig{
		NumTrials: trials,
		MaxForce:  maxForce,
		Seed:      seed,
	}, log)
	if err != nil {
		return err
	}

	stable, unstable, mean, std := automation.MonteCarloStats(results)
	fmt.Printf("trials: %d\n", len(results))
	fmt.Printf("recovered: %d  not recovered: %d\n", stable, unstable)
	fmt.Printf("final error: mean %.4f  std %.4f\n", mean, std)
	return nil
}
