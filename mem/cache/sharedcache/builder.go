package sharedcache

import (
	"fmt"

	"github.com/sarchlab/msisim/mem/cache/internal/tagging"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/noc/networking/arbitration"
	"github.com/sarchlab/msisim/sim"
)

// A Builder can build shared caches.
type Builder struct {
	log2LineSize uint64
	log2NumSets  uint64
	addressBits  uint64
	numWays      int
	numPorts     int
	bufSize      int
}

// MakeBuilder returns a builder for 128 KB, 8-way caches with 64-byte lines
// and two top ports.
func MakeBuilder() Builder {
	return Builder{
		log2LineSize: 6,
		log2NumSets:  8,
		addressBits:  32,
		numWays:      8,
		numPorts:     2,
		bufSize:      4,
	}
}

// WithLog2LineSize sets the number of bytes per line as a power of 2.
func (b Builder) WithLog2LineSize(n uint64) Builder {
	b.log2LineSize = n
	return b
}

// WithLog2NumSets sets the number of sets as a power of 2.
func (b Builder) WithLog2NumSets(n uint64) Builder {
	b.log2NumSets = n
	return b
}

// WithAddressBits sets the width of the addresses.
func (b Builder) WithAddressBits(n uint64) Builder {
	b.addressBits = n
	return b
}

// WithNumWays sets the associativity.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithNumPorts sets the number of top ports.
func (b Builder) WithNumPorts(n int) Builder {
	b.numPorts = n
	return b
}

// WithBufSize sets the buffer size of the ports.
func (b Builder) WithBufSize(n int) Builder {
	b.bufSize = n
	return b
}

// Build creates a shared cache with the given name.
func (b Builder) Build(name string) *Comp {
	if b.numWays < 1 || b.numPorts < 1 {
		panic("a shared cache needs at least one way and one port")
	}

	layout := mem.MakeAddressLayout(b.log2LineSize, b.log2NumSets,
		b.addressBits)

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		layout:        layout,
		tags:          tagging.NewTagArray(layout, b.numWays),
		arbiter:       arbitration.NewRoundRobin(b.numPorts),
	}
	c.storage = mem.NewStorage(c.tags.TotalSize())

	for i := 0; i < b.numPorts; i++ {
		portName := fmt.Sprintf("Top[%d]", i)
		port := sim.NewPort(c, b.bufSize, b.bufSize, name+"."+portName)
		c.topPorts = append(c.topPorts, port)
		c.AddPort(portName, port)
	}

	c.bottomPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".BottomPort")
	c.AddPort("Bottom", c.bottomPort)

	return c
}
