package memaccessagent

import (
	"math/rand"

	"github.com/sarchlab/msisim/sim"
)

// A Builder can build MemAccessAgents.
type Builder struct {
	maxAddress uint64
	writeLeft  int
	readLeft   int
	seed       int64
	golden     *GoldenMemory
	lowModule  sim.RemotePort
}

// MakeBuilder returns a builder that creates agents without random traffic.
func MakeBuilder() *Builder {
	return &Builder{
		maxAddress: 1024 * 1024,
		seed:       1,
	}
}

// WithMaxAddress limits the random addresses to [0, addr).
func (b *Builder) WithMaxAddress(addr uint64) *Builder {
	b.maxAddress = addr
	return b
}

// WithWriteLeft sets the number of random writes.
func (b *Builder) WithWriteLeft(write int) *Builder {
	b.writeLeft = write
	return b
}

// WithReadLeft sets the number of random reads.
func (b *Builder) WithReadLeft(read int) *Builder {
	b.readLeft = read
	return b
}

// WithSeed sets the seed of the random traffic.
func (b *Builder) WithSeed(seed int64) *Builder {
	b.seed = seed
	return b
}

// WithGolden lets the agent share a golden memory with other agents.
func (b *Builder) WithGolden(golden *GoldenMemory) *Builder {
	b.golden = golden
	return b
}

// WithLowModule sets the port that the agent sends requests to.
func (b *Builder) WithLowModule(port sim.RemotePort) *Builder {
	b.lowModule = port
	return b
}

// Build creates a MemAccessAgent.
func (b *Builder) Build(name string) *MemAccessAgent {
	if b.maxAddress < 4 {
		panic("max address must cover at least one word")
	}

	agent := &MemAccessAgent{
		ComponentBase: sim.NewComponentBase(name),
		LowModule:     b.lowModule,
		MaxAddress:    b.maxAddress,
		WriteLeft:     b.writeLeft,
		ReadLeft:      b.readLeft,
		Golden:        b.golden,
		rand:          rand.New(rand.NewSource(b.seed)),
	}

	if agent.Golden == nil {
		agent.Golden = NewGoldenMemory()
	}

	agent.memPort = sim.NewPort(agent, 1, 1, name+".Mem")
	agent.AddPort("Mem", agent.memPort)

	return agent
}
