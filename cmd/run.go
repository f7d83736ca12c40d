package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/msisim/datarecording"
	"github.com/sarchlab/msisim/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/monitoring"
	"github.com/sarchlab/msisim/platform"
	"github.com/sarchlab/msisim/sim"
	"github.com/sarchlab/msisim/tracing"
)

type runOptions struct {
	envFiles    []string
	ops         int
	seed        int64
	maxAddress  uint64
	traceDB     string
	monitor     bool
	monitorPort int
	openBrowser bool
	check       bool
	logMsgs     bool
	logEvents   bool
	uniqueIDs   bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run random memory traffic on both cores.",
	Long: "`run` builds the platform from the MSISIM_* environment, lets " +
		"each core issue random reads and writes, checks every value read " +
		"and prints the counters of every component.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSimulation(runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringSliceVar(&runOpts.envFiles, "env", nil,
		"Env files with MSISIM_* settings.")
	flags.IntVar(&runOpts.ops, "ops", 1000,
		"Number of memory operations per core.")
	flags.Int64Var(&runOpts.seed, "seed", 1, "Seed of the random traffic.")
	flags.Uint64Var(&runOpts.maxAddress, "max-address", 1<<20,
		"Random addresses are below this bound.")
	flags.StringVar(&runOpts.traceDB, "trace-db", "",
		"Record tasks and counters into this SQLite file (without suffix).")
	flags.BoolVar(&runOpts.monitor, "monitor", false,
		"Serve the simulation over HTTP.")
	flags.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server, random if not set.")
	flags.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser.")
	flags.BoolVar(&runOpts.check, "check", true,
		"Check the coherence invariants after every cycle.")
	flags.BoolVar(&runOpts.logMsgs, "log-msgs", false,
		"Log every message sent or received through a port.")
	flags.BoolVar(&runOpts.logEvents, "log-events", false,
		"Log every event that the engine handles.")
	flags.BoolVar(&runOpts.uniqueIDs, "unique-ids", false,
		"Use globally unique message and task IDs, so that traces of "+
			"several runs can be merged.")
}

func runSimulation(opts runOptions) error {
	if opts.ops < 0 {
		return errors.Errorf("invalid number of operations %d", opts.ops)
	}

	config, err := platform.LoadConfig(opts.envFiles...)
	if err != nil {
		return err
	}

	if opts.maxAddress < 4 || opts.maxAddress > config.MemCapacity {
		return errors.Errorf("max address 0x%x is outside the memory",
			opts.maxAddress)
	}

	if opts.uniqueIDs {
		sim.UseParallelIDGenerator()
	}

	p := platform.MakeBuilder().WithConfig(config).Build("Platform")
	agents := attachAgents(p, opts)

	var checker *coherence.Checker
	if opts.check {
		checker = p.AttachChecker()
	}

	if opts.logMsgs {
		attachMsgLogger(p)
	}

	if opts.logEvents {
		p.Engine.AcceptHook(sim.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	busLatency := tracing.NewLatencyTracer(p.Engine, tracing.KindIs("bus_txn"))
	steps := tracing.NewStepCountTracer(func(tracing.Task) bool { return true })
	tracing.CollectTrace(p.Bus, busLatency)

	for _, c := range p.Traceables() {
		tracing.CollectTrace(c, steps)
	}

	var (
		recorder datarecording.DataRecorder
		dbTracer *tracing.DBTracer
	)

	if opts.traceDB != "" {
		recorder = datarecording.New(opts.traceDB)
		dbTracer = tracing.NewDBTracer(p.Engine, recorder)

		for _, c := range p.Traceables() {
			tracing.CollectTrace(c, dbTracer)
		}
	}

	if opts.monitor {
		if err := startMonitor(p, agents, opts); err != nil {
			return err
		}
	}

	if err := p.Run(); err != nil {
		return err
	}

	p.Report(os.Stdout)
	reportTraces(busLatency, steps)

	if recorder != nil {
		dbTracer.Terminate()
		p.RecordStats(recorder)
	}

	return verify(agents, checker)
}

func attachAgents(
	p *platform.Platform,
	opts runOptions,
) []*memaccessagent.MemAccessAgent {
	golden := memaccessagent.NewGoldenMemory()
	agents := make([]*memaccessagent.MemAccessAgent, 0, p.NumCores())

	for i := 0; i < p.NumCores(); i++ {
		agent := memaccessagent.MakeBuilder().
			WithGolden(golden).
			WithSeed(opts.seed + int64(i)).
			WithMaxAddress(opts.maxAddress).
			WithReadLeft(opts.ops / 2).
			WithWriteLeft(opts.ops - opts.ops/2).
			WithLowModule(p.CPUPort(i)).
			Build(fmt.Sprintf("Agent[%d]", i))

		p.ConnectCPU(i, agent.MemPort())
		p.AddDriver(agent)

		agents = append(agents, agent)
	}

	return agents
}

func attachMsgLogger(p *platform.Platform) {
	logger := sim.NewPortMsgLogger(log.New(os.Stderr, "", 0), p.Engine)

	for _, c := range p.Components() {
		for _, port := range c.Ports() {
			port.AcceptHook(logger)
		}
	}
}

func startMonitor(
	p *platform.Platform,
	agents []*memaccessagent.MemAccessAgent,
	opts runOptions,
) error {
	m := monitoring.NewMonitor().
		WithPortNumber(opts.monitorPort).
		WithBrowser(opts.openBrowser)
	m.RegisterPlatform(p)

	bar := m.CreateProgressBar("Memory operations",
		uint64(opts.ops*len(agents)))

	p.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos != platform.HookPosCycleEnd {
			return
		}

		done := 0
		for _, a := range agents {
			done += len(a.Results())
		}

		bar.SetFinished(uint64(done))
	}))

	_, err := m.StartServer()

	return err
}

func reportTraces(
	busLatency *tracing.LatencyTracer,
	steps *tracing.StepCountTracer,
) {
	fmt.Printf("bus transactions, %d, average %.3e s, max %.3e s\n",
		busLatency.TotalCount(), busLatency.AverageTime(), busLatency.MaxTime())

	for _, name := range steps.GetStepNames() {
		fmt.Printf("step %s, %d\n", name, steps.GetStepCount(name))
	}
}

func verify(
	agents []*memaccessagent.MemAccessAgent,
	checker *coherence.Checker,
) error {
	mismatches := 0

	for _, a := range agents {
		for _, m := range a.Mismatches() {
			fmt.Fprintf(os.Stderr,
				"%s read 0x%08x at 0x%x in cycle %d, expected one of %x\n",
				a.Name(), m.Got, m.Address, m.Cycle, m.Expected)
		}

		mismatches += len(a.Mismatches())
	}

	if mismatches > 0 {
		return errors.Errorf("%d reads returned unexpected data", mismatches)
	}

	if checker == nil {
		return nil
	}

	for _, v := range checker.Violations() {
		fmt.Fprintf(os.Stderr, "cycle %d, 0x%x: %s\n",
			v.Cycle, v.Address, v.Reason)
	}

	if n := len(checker.Violations()); n > 0 {
		return errors.Errorf("%d coherence violations", n)
	}

	return nil
}
