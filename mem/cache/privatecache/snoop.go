package privatecache

import (
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/noc/bus"
)

// BusRequest returns the transaction that the cache needs, if any.
func (c *Comp) BusRequest() (bus.Request, bool) {
	if c.pending == nil || c.doneTxn != nil {
		return bus.Request{}, false
	}

	p := c.pending
	req := bus.Request{Address: p.lineAddr}

	switch c.state {
	case BufSharedToModified:
		req.Command = coherence.ReadExclusive
		if p.block.IsValid && p.block.Tag == p.tag &&
			p.block.State == coherence.Shared {
			req.Command = coherence.Upgrade
		}
	case BufInvalidToShared:
		req.Command = coherence.Read
	case BufInvalidToModified:
		req.Command = coherence.ReadExclusive
	case Writeback:
		if !c.victimStillModified() {
			return bus.Request{}, false
		}

		req.Command = coherence.Flush
		req.Address = p.victimAddr
		req.Data = c.readLine(p.block)
	default:
		return bus.Request{}, false
	}

	return req, true
}

// Complete latches the finished transaction. The controller applies it in
// its next tick.
func (c *Comp) Complete(txn *bus.Transaction) {
	c.doneTxn = txn
}

// Snoop updates the line that another cache's transaction refers to.
func (c *Comp) Snoop(txn *bus.Transaction) bus.SnoopRsp {
	if txn.Command == coherence.Flush {
		return bus.SnoopRsp{}
	}

	block, hit := c.tags.Lookup(txn.Address)
	if !hit {
		return bus.SnoopRsp{}
	}

	c.stats.SnoopHits++

	rsp := bus.SnoopRsp{Hit: true}

	switch txn.Command {
	case coherence.Read:
		rsp.Data = c.readLine(block)

		if block.State == coherence.Modified {
			rsp.WasModified = true
			block.State = coherence.Shared
			block.IsDirty = false
			c.stats.Downgrades++
		}
	case coherence.ReadExclusive, coherence.Upgrade:
		if block.State == coherence.Modified {
			rsp.Data = c.readLine(block)
			rsp.WasModified = true
		}

		c.invalidate(block)
		c.stats.Invalidations++
	}

	return rsp
}
