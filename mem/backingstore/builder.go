package backingstore

import (
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/sim"
)

// A Builder can build backing stores.
type Builder struct {
	latency    int
	capacity   uint64
	lineSize   uint64
	topBufSize int
	storage    *mem.Storage
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		latency:    100,
		capacity:   4 * mem.GB,
		lineSize:   64,
		topBufSize: 4,
	}
}

// WithLatency sets the number of cycles to serve a request.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithNewStorage sets the capacity of a new storage for the memory.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage lets the memory use an existing storage.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithLineSize sets the number of bytes moved per request.
func (b Builder) WithLineSize(lineSize uint64) Builder {
	b.lineSize = lineSize
	return b
}

// WithTopBufSize sets the size of the top buffer
func (b Builder) WithTopBufSize(topBufSize int) Builder {
	b.topBufSize = topBufSize
	return b
}

// Build builds a new Comp
func (b Builder) Build(name string) *Comp {
	if b.latency < 0 {
		panic("latency cannot be negative")
	}

	if b.lineSize == 0 || b.lineSize&(b.lineSize-1) != 0 {
		panic("line size must be a power of 2")
	}

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		Latency:       b.latency,
		lineSize:      b.lineSize,
		storage:       b.storage,
	}

	if c.storage == nil {
		c.storage = mem.NewStorage(b.capacity)
	}

	c.topPort = sim.NewPort(c, b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	return c
}
