package sharedcache

import (
	"log"
	"reflect"

	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/tracing"
)

func (c *Comp) accept() bool {
	requesting := make([]bool, len(c.topPorts))
	for i, port := range c.topPorts {
		requesting[i] = port.PeekIncoming() != nil
	}

	winner, ok := c.arbiter.Arbitrate(requesting)
	if !ok {
		return false
	}

	msg := c.topPorts[winner].RetrieveIncoming()

	req, isAccess := msg.(mem.AccessReq)
	if !isAccess {
		log.Panicf("cache %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	p := &pendingReq{
		req:     req,
		port:    winner,
		address: req.GetAddress(),
		offset:  c.layout.Offset(req.GetAddress()),
		size:    req.GetByteSize(),
	}

	if !c.layout.Contains(p.address) {
		log.Panicf("cache %s: address 0x%x exceeds %d bits",
			c.Name(), p.address, c.layout.AddressBits)
	}

	if p.size == 0 || p.offset+p.size > c.layout.LineSize() {
		log.Panicf("cache %s: access of %d bytes at 0x%x crosses a line",
			c.Name(), p.size, p.address)
	}

	if write, ok := req.(*mem.WriteReq); ok {
		p.isWrite = true
		p.data = write.Data
		p.mask = write.DirtyMask
	}

	tracing.TraceReqReceive(req, c)
	p.taskID = tracing.MsgIDAtReceiver(req, c)

	c.pending = p
	c.state = CheckHit

	return true
}

func (c *Comp) checkHit() bool {
	p := c.pending

	block, hit := c.tags.Lookup(p.address)
	if hit {
		if p.isWrite {
			c.stats.WriteHits++
		} else {
			c.stats.ReadHits++
		}

		tracing.AddTaskStep(p.taskID, c, "hit")

		p.block = block
		c.finishAccess()

		return true
	}

	if p.isWrite {
		c.stats.WriteMisses++
	} else {
		c.stats.ReadMisses++
	}

	tracing.AddTaskStep(p.taskID, c, "miss")

	victim := c.tags.FindVictim(p.address)
	p.block = victim

	if victim.IsValid && victim.IsDirty {
		c.lowReq = mem.WriteReqBuilder{}.
			WithSrc(c.bottomPort.AsRemote()).
			WithDst(c.lowModule).
			WithAddress(c.tags.BlockAddr(victim)).
			WithData(c.readLine(victim)).
			Build()
		c.lowReqSent = false
		c.state = Writeback

		return true
	}

	victim.IsValid = false
	c.startFetch()

	return true
}

func (c *Comp) startFetch() {
	c.lowReq = mem.ReadReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(c.lowModule).
		WithAddress(c.layout.LineAddr(c.pending.address)).
		WithByteSize(c.layout.LineSize()).
		Build()
	c.lowReqSent = false
	c.state = Allocate
}

// accessLower sends the outstanding request to the backing store and returns
// its response once it arrives.
func (c *Comp) accessLower() (mem.AccessRsp, bool) {
	if !c.lowReqSent {
		if err := c.bottomPort.Send(c.lowReq); err != nil {
			return nil, false
		}

		c.lowReqSent = true

		return nil, true
	}

	msg := c.bottomPort.PeekIncoming()
	if msg == nil {
		return nil, false
	}

	rsp, ok := msg.(mem.AccessRsp)
	if !ok || rsp.GetRspTo() != c.lowReq.Meta().ID {
		log.Panicf("cache %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	c.bottomPort.RetrieveIncoming()
	c.lowReq = nil

	return rsp, true
}

func (c *Comp) writeback() bool {
	rsp, progress := c.accessLower()
	if rsp == nil {
		return progress
	}

	if _, ok := rsp.(*mem.WriteDoneRsp); !ok {
		log.Panicf("cache %s expects a write done, got %s",
			c.Name(), reflect.TypeOf(rsp))
	}

	c.stats.Writebacks++
	tracing.AddTaskStep(c.pending.taskID, c, "writeback")

	c.pending.block.IsValid = false
	c.pending.block.IsDirty = false
	c.startFetch()

	return true
}

func (c *Comp) allocate() bool {
	rsp, progress := c.accessLower()
	if rsp == nil {
		return progress
	}

	dataReady, ok := rsp.(*mem.DataReadyRsp)
	if !ok {
		log.Panicf("cache %s expects data, got %s",
			c.Name(), reflect.TypeOf(rsp))
	}

	if uint64(len(dataReady.Data)) != c.layout.LineSize() {
		log.Panicf("cache %s receives %d bytes for a line of %d bytes",
			c.Name(), len(dataReady.Data), c.layout.LineSize())
	}

	p := c.pending
	p.block.Tag = c.layout.Tag(p.address)
	p.block.IsValid = true
	p.block.IsDirty = false
	c.mustWrite(p.block.CacheAddress, dataReady.Data)

	c.finishAccess()

	return true
}

func (c *Comp) finishAccess() {
	p := c.pending

	if p.isWrite {
		line := c.readLine(p.block)
		mem.MergeMasked(line, p.offset, p.data, p.mask)
		c.mustWrite(p.block.CacheAddress, line)
		p.block.IsDirty = true
	} else {
		p.rspData = c.mustRead(p.block.CacheAddress+p.offset, p.size)
	}

	c.tags.Visit(p.block)
	c.state = Respond
}

func (c *Comp) respond() bool {
	p := c.pending
	port := c.topPorts[p.port]

	var rsp mem.AccessRsp
	if p.isWrite {
		rsp = mem.WriteDoneRspBuilder{}.
			WithSrc(port.AsRemote()).
			WithDst(p.req.Meta().Src).
			WithRspTo(p.req.Meta().ID).
			Build()
	} else {
		rsp = mem.DataReadyRspBuilder{}.
			WithSrc(port.AsRemote()).
			WithDst(p.req.Meta().Src).
			WithRspTo(p.req.Meta().ID).
			WithData(p.rspData).
			Build()
	}

	if err := port.Send(rsp); err != nil {
		return false
	}

	tracing.TraceReqComplete(p.req, c)

	c.pending = nil
	c.state = Idle

	return true
}
