// Package platform wires two private caches, the snooping bus, the shared
// cache and the backing store into a hierarchy that advances in lockstep.
package platform

import (
	"fmt"
	"io"
	"reflect"

	"github.com/pkg/errors"

	"github.com/sarchlab/msisim/datarecording"
	"github.com/sarchlab/msisim/mem/backingstore"
	"github.com/sarchlab/msisim/mem/cache/privatecache"
	"github.com/sarchlab/msisim/mem/cache/sharedcache"
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/noc/bus"
	"github.com/sarchlab/msisim/sim"
	"github.com/sarchlab/msisim/tracing"
)

// HookPosCycleEnd marks the end of a cycle, after every component and
// connection has been ticked.
var HookPosCycleEnd = &sim.HookPos{Name: "CycleEnd"}

// A Driver issues CPU requests. Drivers are ticked first in every cycle.
type Driver interface {
	Tick() bool
	Finished() bool
}

// Platform is a two-core cache hierarchy. In every cycle it ticks the
// drivers, the bus, the private caches, the shared cache, the backing store
// and finally the connections, so a message sent in one cycle is seen by its
// receiver in the next.
type Platform struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	Engine      sim.Engine
	L1s         []*privatecache.Comp
	Bus         *bus.Comp
	L2          *sharedcache.Comp
	Memory      *backingstore.Comp
	Connections []*sim.DirectConnection

	cpuConns  []*sim.DirectConnection
	drivers   []Driver
	cycle     uint64
	maxCycles uint64
	timedOut  bool
}

// Cycle returns the number of cycles that have been simulated.
func (p *Platform) Cycle() uint64 {
	return p.cycle
}

// NumCores returns the number of private caches.
func (p *Platform) NumCores() int {
	return len(p.L1s)
}

// CPUPort returns the port that the i-th core sends requests to.
func (p *Platform) CPUPort(i int) sim.RemotePort {
	return p.L1s[i].TopPort().AsRemote()
}

// ConnectCPU plugs the port of the i-th core into the connection of the i-th
// private cache.
func (p *Platform) ConnectCPU(i int, port sim.Port) {
	p.cpuConns[i].PlugIn(port)
}

// AddDriver registers a driver. Drivers are ticked in the order they are
// added.
func (p *Platform) AddDriver(d Driver) {
	p.drivers = append(p.drivers, d)
}

// Tick advances the whole hierarchy by one cycle.
func (p *Platform) Tick() bool {
	madeProgress := false

	for _, d := range p.drivers {
		madeProgress = d.Tick() || madeProgress
	}

	madeProgress = p.MiddlewareHolder.Tick() || madeProgress

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    HookPosCycleEnd,
		Item:   p.cycle,
	})

	p.cycle++

	if p.maxCycles > 0 && p.cycle >= p.maxCycles && !p.Finished() {
		p.timedOut = true
		return false
	}

	return madeProgress || !p.Finished()
}

// Finished returns true if every driver is done.
func (p *Platform) Finished() bool {
	for _, d := range p.drivers {
		if !d.Finished() {
			return false
		}
	}

	return true
}

// Run ticks the platform on its engine until all drivers are finished and
// the hierarchy is quiet.
func (p *Platform) Run() error {
	p.TickLater()

	if err := p.Engine.Run(); err != nil {
		return errors.Wrap(err, "simulation failed")
	}

	p.Engine.Finished()

	if p.timedOut {
		return errors.Errorf("platform %s did not finish in %d cycles",
			p.Name(), p.maxCycles)
	}

	return nil
}

// RunCycles ticks the platform n times without an engine.
func (p *Platform) RunCycles(n int) {
	for i := 0; i < n; i++ {
		p.Tick()
	}
}

// RunUntilFinished ticks the platform without an engine until the drivers
// are finished. It returns an error if that takes more than limit cycles.
func (p *Platform) RunUntilFinished(limit uint64) error {
	start := p.cycle

	for !p.Finished() {
		if p.cycle-start >= limit {
			return errors.Errorf("platform %s did not finish in %d cycles",
				p.Name(), limit)
		}

		p.Tick()
	}

	return nil
}

// AttachChecker creates a coherence checker over the private caches that
// runs at the end of every cycle.
func (p *Platform) AttachChecker() *coherence.Checker {
	caches := make([]coherence.Inspectable, 0, len(p.L1s))
	for _, l1 := range p.L1s {
		caches = append(caches, l1)
	}

	checker := coherence.NewChecker(caches...).WithCycleSource(p.Cycle)

	p.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos == HookPosCycleEnd {
			checker.Func(ctx)
		}
	}))

	return checker
}

// Traceables returns the components that report tasks.
func (p *Platform) Traceables() []tracing.NamedHookable {
	list := make([]tracing.NamedHookable, 0, len(p.L1s)+3)
	for _, l1 := range p.L1s {
		list = append(list, l1)
	}

	return append(list, p.Bus, p.L2, p.Memory)
}

// Components returns all the components of the hierarchy.
func (p *Platform) Components() []sim.Component {
	list := make([]sim.Component, 0, len(p.L1s)+3)
	for _, l1 := range p.L1s {
		list = append(list, l1)
	}

	return append(list, p.Bus, p.L2, p.Memory)
}

// A StatEntry is one counter of one component.
type StatEntry struct {
	Component string `json:"component"`
	Stat      string `json:"stat"`
	Value     uint64 `json:"value"`
}

// Stats lists the counters of all the components.
func (p *Platform) Stats() []StatEntry {
	var entries []StatEntry

	for _, l1 := range p.L1s {
		entries = appendStats(entries, l1.Name(), l1.Stats())
	}

	entries = appendStats(entries, p.Bus.Name(), p.Bus.Stats())
	entries = appendStats(entries, p.L2.Name(), p.L2.Stats())
	entries = appendStats(entries, p.Memory.Name(), p.Memory.Stats())

	return entries
}

func appendStats(
	entries []StatEntry,
	component string,
	stats interface{},
) []StatEntry {
	v := reflect.ValueOf(stats)
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		entries = append(entries, StatEntry{
			Component: component,
			Stat:      t.Field(i).Name,
			Value:     v.Field(i).Uint(),
		})
	}

	return entries
}

// Report writes the counters of all the components.
func (p *Platform) Report(w io.Writer) {
	fmt.Fprintf(w, "%s finished in %d cycles\n", p.Name(), p.cycle)

	for _, e := range p.Stats() {
		fmt.Fprintf(w, "%s.%s, %d\n", e.Component, e.Stat, e.Value)
	}
}

// RecordStats stores the counters in the "stats" table of the recorder.
func (p *Platform) RecordStats(recorder datarecording.DataRecorder) {
	recorder.CreateTable("stats", StatEntry{})

	for _, e := range p.Stats() {
		recorder.InsertData("stats", e)
	}

	recorder.Flush()
}
