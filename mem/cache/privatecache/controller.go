package privatecache

import (
	"log"
	"reflect"

	"github.com/sarchlab/msisim/mem/cache/internal/tagging"
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/tracing"
)

func (c *Comp) accept() bool {
	msg := c.topPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(mem.AccessReq)
	if !ok {
		log.Panicf("cache %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	c.pending = &pendingReq{req: req}
	c.state = Capture

	return true
}

func (c *Comp) capture() bool {
	p := c.pending

	p.address = p.req.GetAddress()
	p.lineAddr = c.layout.LineAddr(p.address)
	p.tag = c.layout.Tag(p.address)
	p.offset = c.layout.Offset(p.address)
	p.size = p.req.GetByteSize()

	if !c.layout.Contains(p.address) {
		log.Panicf("cache %s: address 0x%x exceeds %d bits",
			c.Name(), p.address, c.layout.AddressBits)
	}

	if p.size == 0 || p.offset+p.size > c.layout.LineSize() {
		log.Panicf("cache %s: access of %d bytes at 0x%x crosses a line",
			c.Name(), p.size, p.address)
	}

	if write, ok := p.req.(*mem.WriteReq); ok {
		p.isWrite = true
		p.data = write.Data
		p.mask = write.DirtyMask
	}

	tracing.TraceReqReceive(p.req, c)
	p.taskID = tracing.MsgIDAtReceiver(p.req, c)

	c.state = CheckHit

	return true
}

func (c *Comp) checkHit() bool {
	p := c.pending

	block, hit := c.tags.Lookup(p.address)
	if hit {
		return c.handleHit(block)
	}

	return c.handleMiss()
}

func (c *Comp) handleHit(block *tagging.Block) bool {
	p := c.pending
	p.block = block

	switch {
	case !p.isWrite:
		c.stats.ReadHits++
		tracing.AddTaskStep(p.taskID, c, "read-hit")
		c.finishAccess()
	case block.State == coherence.Modified:
		c.stats.WriteHits++
		tracing.AddTaskStep(p.taskID, c, "write-hit")
		c.finishAccess()
	default:
		c.stats.WriteHits++
		tracing.AddTaskStep(p.taskID, c, "write-upgrade")
		c.state = BufSharedToModified
	}

	return true
}

func (c *Comp) handleMiss() bool {
	p := c.pending

	next := BufInvalidToShared
	if p.isWrite {
		next = BufInvalidToModified
		c.stats.WriteMisses++
		tracing.AddTaskStep(p.taskID, c, "write-miss")
	} else {
		c.stats.ReadMisses++
		tracing.AddTaskStep(p.taskID, c, "read-miss")
	}

	victim := c.tags.FindVictim(p.address)
	p.block = victim

	if victim.IsValid && victim.State == coherence.Modified {
		p.victimAddr = c.tags.BlockAddr(victim)
		p.next = next
		c.state = Writeback

		return true
	}

	if victim.IsValid {
		c.invalidate(victim)
	}

	c.state = next

	return true
}

func (c *Comp) victimStillModified() bool {
	p := c.pending

	return p.block.IsValid &&
		p.block.State == coherence.Modified &&
		c.tags.BlockAddr(p.block) == p.victimAddr
}

func (c *Comp) finishWriteback() bool {
	p := c.pending

	if c.doneTxn != nil {
		txn := c.doneTxn
		c.doneTxn = nil

		if txn.Command != coherence.Flush {
			log.Panicf("cache %s expects a flush to complete, got %s",
				c.Name(), txn.Command)
		}

		c.stats.Writebacks++
		tracing.AddTaskStep(p.taskID, c, "writeback")
		c.invalidate(p.block)
		c.state = p.next

		return true
	}

	if c.victimStillModified() {
		return false
	}

	if p.block.IsValid {
		c.invalidate(p.block)
	}

	tracing.AddTaskStep(p.taskID, c, "writeback-dropped")
	c.state = p.next

	return true
}

func (c *Comp) finishBusTxn() bool {
	txn := c.doneTxn
	if txn == nil {
		return false
	}

	c.doneTxn = nil
	p := c.pending

	switch txn.Command {
	case coherence.Upgrade:
		c.stats.Upgrades++
		p.block.State = coherence.Modified
		p.block.IsDirty = true
	case coherence.Read:
		c.install(txn.DataIn, coherence.Shared)
	case coherence.ReadExclusive:
		c.install(txn.DataIn, coherence.Modified)
	default:
		log.Panicf("cache %s cannot complete a %s", c.Name(), txn.Command)
	}

	c.finishAccess()

	return true
}

func (c *Comp) install(data []byte, state coherence.State) {
	p := c.pending

	if uint64(len(data)) != c.layout.LineSize() {
		log.Panicf("cache %s receives %d bytes for a line of %d bytes",
			c.Name(), len(data), c.layout.LineSize())
	}

	p.block.Tag = p.tag
	p.block.IsValid = true
	p.block.State = state
	p.block.IsDirty = state == coherence.Modified

	c.mustWrite(p.block.CacheAddress, data)
}

// finishAccess reads or writes the bytes of the pending request in its block
// and moves on to responding.
func (c *Comp) finishAccess() {
	p := c.pending

	if p.isWrite {
		line := c.readLine(p.block)
		mem.MergeMasked(line, p.offset, p.data, p.mask)
		c.mustWrite(p.block.CacheAddress, line)
	} else {
		p.rspData = c.mustRead(p.block.CacheAddress+p.offset, p.size)
	}

	c.tags.Visit(p.block)
	c.state = Respond
}

func (c *Comp) respond() bool {
	p := c.pending
	req := p.req

	var rsp mem.AccessRsp
	if p.isWrite {
		rsp = mem.WriteDoneRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Meta().Src).
			WithRspTo(req.Meta().ID).
			Build()
	} else {
		rsp = mem.DataReadyRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Meta().Src).
			WithRspTo(req.Meta().ID).
			WithData(p.rspData).
			Build()
	}

	if err := c.topPort.Send(rsp); err != nil {
		return false
	}

	tracing.TraceReqComplete(req, c)

	c.pending = nil
	c.state = Idle

	return true
}
