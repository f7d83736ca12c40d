package bus

import (
	"fmt"

	"github.com/sarchlab/msisim/noc/networking/arbitration"
	"github.com/sarchlab/msisim/sim"
)

// A Builder can build buses.
type Builder struct {
	numAgents    int
	snoopLatency int
	lineSize     uint64
	bufSize      int
	arbiter      arbitration.Arbiter
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numAgents:    2,
		snoopLatency: 1,
		lineSize:     64,
		bufSize:      4,
	}
}

// WithNumAgents sets the number of caches on the bus.
func (b Builder) WithNumAgents(n int) Builder {
	b.numAgents = n
	return b
}

// WithSnoopLatency sets the number of cycles between granting the bus and
// sampling the snoop responses.
func (b Builder) WithSnoopLatency(cycles int) Builder {
	b.snoopLatency = cycles
	return b
}

// WithLineSize sets the number of bytes moved per transaction.
func (b Builder) WithLineSize(size uint64) Builder {
	b.lineSize = size
	return b
}

// WithBufSize sets the buffer size of the ports toward the shared cache.
func (b Builder) WithBufSize(n int) Builder {
	b.bufSize = n
	return b
}

// WithArbiter replaces the default round-robin arbiter.
func (b Builder) WithArbiter(arbiter arbitration.Arbiter) Builder {
	b.arbiter = arbiter
	return b
}

// Build creates a bus with the given name.
func (b Builder) Build(name string) *Comp {
	if b.numAgents < 1 {
		panic("bus needs at least one agent")
	}

	if b.snoopLatency < 0 {
		panic("snoop latency cannot be negative")
	}

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		agents:        make([]Agent, b.numAgents),
		lowModules:    make([]sim.RemotePort, b.numAgents),
		snoopLatency:  b.snoopLatency,
		lineSize:      b.lineSize,
		arbiter:       b.arbiter,
	}

	if c.arbiter == nil {
		c.arbiter = arbitration.NewRoundRobin(b.numAgents)
	}

	for i := 0; i < b.numAgents; i++ {
		portName := fmt.Sprintf("Bottom[%d]", i)
		port := sim.NewPort(c, b.bufSize, b.bufSize, name+"."+portName)
		c.bottomPorts = append(c.bottomPorts, port)
		c.AddPort(portName, port)
	}

	return c
}
