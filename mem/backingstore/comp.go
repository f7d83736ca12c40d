// Package backingstore provides the main memory below the shared cache. It
// answers one line-sized request at a time after a fixed latency.
package backingstore

import (
	"log"
	"reflect"

	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/sim"
	"github.com/sarchlab/msisim/tracing"
)

// Stats counts the requests served by the backing store.
type Stats struct {
	Reads  uint64
	Writes uint64
}

// Comp is a fixed-latency memory that stores and returns whole lines.
type Comp struct {
	*sim.ComponentBase

	topPort  sim.Port
	storage  *mem.Storage
	Latency  int
	lineSize uint64

	pending    mem.AccessReq
	cyclesLeft int
	rsp        mem.AccessRsp

	stats Stats
}

// TopPort returns the port that receives requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// Storage returns the bytes of the memory.
func (c *Comp) Storage() *mem.Storage {
	return c.storage
}

// Stats returns the counters of the memory.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Busy returns true if a request is being served.
func (c *Comp) Busy() bool {
	return c.pending != nil
}

// Tick advances the memory by one cycle. A request received in cycle C is
// answered in cycle C+Latency.
func (c *Comp) Tick() bool {
	if c.pending == nil {
		return c.accept()
	}

	if c.cyclesLeft > 0 {
		c.cyclesLeft--

		if c.cyclesLeft > 0 {
			return true
		}
	}

	return c.finish()
}

func (c *Comp) accept() bool {
	msg := c.topPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(mem.AccessReq)
	if !ok {
		log.Panicf("memory %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	tracing.TraceReqReceive(req, c)

	c.pending = req
	c.cyclesLeft = c.Latency

	if c.cyclesLeft == 0 {
		c.finish()
	}

	return true
}

func (c *Comp) finish() bool {
	if c.rsp == nil {
		c.rsp = c.access(c.pending)
	}

	if err := c.topPort.Send(c.rsp); err != nil {
		return false
	}

	tracing.TraceReqComplete(c.pending, c)

	c.pending = nil
	c.rsp = nil

	return true
}

func (c *Comp) lineAddr(addr uint64) uint64 {
	return addr &^ (c.lineSize - 1)
}

func (c *Comp) access(req mem.AccessReq) mem.AccessRsp {
	addr := c.lineAddr(req.GetAddress())

	switch req := req.(type) {
	case *mem.ReadReq:
		c.stats.Reads++

		data, err := c.storage.Read(addr, c.lineSize)
		if err != nil {
			log.Panic(err)
		}

		return mem.DataReadyRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(data).
			Build()
	case *mem.WriteReq:
		c.stats.Writes++
		c.write(addr, req)

		return mem.WriteDoneRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	default:
		log.Panicf("memory %s cannot handle %s", c.Name(), reflect.TypeOf(req))
	}

	return nil
}

func (c *Comp) write(addr uint64, req *mem.WriteReq) {
	if uint64(len(req.Data)) != c.lineSize {
		log.Panicf("memory %s only writes whole lines, got %d bytes",
			c.Name(), len(req.Data))
	}

	line, err := c.storage.Read(addr, c.lineSize)
	if err != nil {
		log.Panic(err)
	}

	mem.MergeMasked(line, 0, req.Data, req.DirtyMask)

	if err := c.storage.Write(addr, line); err != nil {
		log.Panic(err)
	}
}
