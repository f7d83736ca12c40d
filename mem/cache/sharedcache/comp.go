// Package sharedcache implements the shared, write-back, write-allocate L2
// cache that sits between the snooping bus and the backing store.
package sharedcache

import (
	"log"

	"github.com/sarchlab/msisim/mem/cache/internal/tagging"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/noc/networking/arbitration"
	"github.com/sarchlab/msisim/sim"
)

// State is the state of the cache controller.
type State int

// The states of the cache controller.
const (
	Idle State = iota
	CheckHit
	Writeback
	Allocate
	Respond
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case CheckHit:
		return "CheckHit"
	case Writeback:
		return "Writeback"
	case Allocate:
		return "Allocate"
	case Respond:
		return "Respond"
	default:
		return "Unknown"
	}
}

// Stats counts the events of the shared cache.
type Stats struct {
	ReadHits    uint64
	ReadMisses  uint64
	WriteHits   uint64
	WriteMisses uint64
	Writebacks  uint64
}

type pendingReq struct {
	req     mem.AccessReq
	port    int
	taskID  string
	address uint64
	offset  uint64
	size    uint64
	isWrite bool
	data    []byte
	mask    []bool

	block   *tagging.Block
	rspData []byte
}

// Comp is the shared cache. It serves one request at a time, picking the
// next request from its top ports in round-robin order.
type Comp struct {
	*sim.ComponentBase

	topPorts   []sim.Port
	bottomPort sim.Port
	lowModule  sim.RemotePort
	arbiter    arbitration.Arbiter

	tags    *tagging.TagArray
	storage *mem.Storage
	layout  mem.AddressLayout

	state      State
	pending    *pendingReq
	lowReq     mem.AccessReq
	lowReqSent bool

	stats Stats
}

// TopPort returns the i-th port that receives requests.
func (c *Comp) TopPort(i int) sim.Port {
	return c.topPorts[i]
}

// BottomPort returns the port toward the backing store.
func (c *Comp) BottomPort() sim.Port {
	return c.bottomPort
}

// SetLowModule sets the port of the backing store.
func (c *Comp) SetLowModule(port sim.RemotePort) {
	c.lowModule = port
}

// State returns the current state of the controller.
func (c *Comp) State() State {
	return c.state
}

// Stats returns the counters of the cache.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Contains returns whether the cache holds the line of addr and whether that
// line is dirty.
func (c *Comp) Contains(addr uint64) (found, dirty bool) {
	block, hit := c.tags.Lookup(addr)
	if !hit {
		return false, false
	}

	return true, block.IsDirty
}

// Tick advances the controller by one cycle.
func (c *Comp) Tick() bool {
	switch c.state {
	case Idle:
		return c.accept()
	case CheckHit:
		return c.checkHit()
	case Writeback:
		return c.writeback()
	case Allocate:
		return c.allocate()
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
