package privatecache

import (
	"github.com/sarchlab/msisim/mem/cache/internal/tagging"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/sim"
)

// A Builder can build private caches.
type Builder struct {
	log2LineSize uint64
	log2NumSets  uint64
	addressBits  uint64
	numWays      int
	bufSize      int
}

// MakeBuilder returns a builder for 32 KB, 4-way caches with 64-byte lines.
func MakeBuilder() Builder {
	return Builder{
		log2LineSize: 6,
		log2NumSets:  7,
		addressBits:  32,
		numWays:      4,
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

// WithBufSize sets the buffer size of the top port.
func (b Builder) WithBufSize(n int) Builder {
	b.bufSize = n
	return b
}

// Build creates a private cache with the given name.
func (b Builder) Build(name string) *Comp {
	if b.numWays < 1 {
		panic("a cache needs at least one way")
	}

	layout := mem.MakeAddressLayout(b.log2LineSize, b.log2NumSets,
		b.addressBits)

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		layout:        layout,
		tags:          tagging.NewTagArray(layout, b.numWays),
	}
	c.storage = mem.NewStorage(c.tags.TotalSize())

	c.topPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	return c
}
