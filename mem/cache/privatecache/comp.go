// Package privatecache implements a private, write-back, write-allocate L1
// cache that keeps its lines coherent with the MSI protocol by snooping a
// shared bus.
package privatecache

import (
	"log"

	"github.com/sarchlab/msisim/mem/cache/internal/tagging"
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/noc/bus"
	"github.com/sarchlab/msisim/sim"
)

// State is the state of the cache controller.
type State int

// The states of the cache controller.
const (
	Idle State = iota
	Capture
	CheckHit
	BufSharedToModified
	BufInvalidToShared
	BufInvalidToModified
	Writeback
	Respond
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capture:
		return "Capture"
	case CheckHit:
		return "CheckHit"
	case BufSharedToModified:
		return "BufSharedToModified"
	case BufInvalidToShared:
		return "BufInvalidToShared"
	case BufInvalidToModified:
		return "BufInvalidToModified"
	case Writeback:
		return "Writeback"
	case Respond:
		return "Respond"
	default:
		return "Unknown"
	}
}

// Stats counts the events of a private cache.
type Stats struct {
	ReadHits      uint64
	ReadMisses    uint64
	WriteHits     uint64
	WriteMisses   uint64
	Upgrades      uint64
	Writebacks    uint64
	SnoopHits     uint64
	Invalidations uint64
	Downgrades    uint64
}

type pendingReq struct {
	req      mem.AccessReq
	taskID   string
	address  uint64
	lineAddr uint64
	tag      uint64
	offset   uint64
	size     uint64
	isWrite  bool
	data     []byte
	mask     []bool

	// block is the slot that serves the request: the hit block, or the slot
	// that the missing line is installed into.
	block *tagging.Block

	victimAddr uint64
	next       State

	rspData []byte
}

// Comp is a private L1 cache. It serves one CPU request at a time.
type Comp struct {
	*sim.ComponentBase

	topPort sim.Port
	tags    *tagging.TagArray
	storage *mem.Storage
	layout  mem.AddressLayout

	state   State
	pending *pendingReq
	doneTxn *bus.Transaction

	stats Stats
}

// TopPort returns the port that receives the CPU requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// State returns the current state of the controller.
func (c *Comp) State() State {
	return c.state
}

// Stats returns the counters of the cache.
func (c *Comp) Stats() Stats {
	return c.stats
}

// LineState returns the coherence state of the line that holds addr.
func (c *Comp) LineState(addr uint64) coherence.State {
	block, hit := c.tags.Lookup(addr)
	if !hit {
		return coherence.Invalid
	}

	return block.State
}

// ValidLines lists the lines held by the cache.
func (c *Comp) ValidLines() []coherence.LineSnapshot {
	blocks := c.tags.ValidBlocks()
	lines := make([]coherence.LineSnapshot, 0, len(blocks))

	for _, block := range blocks {
		lines = append(lines, coherence.LineSnapshot{
			Address: c.tags.BlockAddr(block),
			State:   block.State,
			Data:    c.readLine(block),
		})
	}

	return lines
}

// Tick advances the controller by one cycle.
func (c *Comp) Tick() bool {
	switch c.state {
	case Idle:
		return c.accept()
	case Capture:
		return c.capture()
	case CheckHit:
		return c.checkHit()
	case BufSharedToModified, BufInvalidToShared, BufInvalidToModified:
		return c.finishBusTxn()
	case Writeback:
		return c.finishWriteback()
	case Respond:
		return c.respond()
	default:
		log.Panicf("cache %s in unknown state %d", c.Name(), c.state)
	}

	return false
}

func (c *Comp) readLine(block *tagging.Block) []byte {
	return c.mustRead(block.CacheAddress, c.layout.LineSize())
}

func (c *Comp) mustRead(addr, size uint64) []byte {
	data, err := c.storage.Read(addr, size)
	if err != nil {
		log.Panic(err)
	}

	return data
}

func (c *Comp) mustWrite(addr uint64, data []byte) {
	err := c.storage.Write(addr, data)
	if err != nil {
		log.Panic(err)
	}
}

func (c *Comp) invalidate(block *tagging.Block) {
	block.IsValid = false
	block.IsDirty = false
	block.State = coherence.Invalid
}
