package bus

import (
	"log"
	"reflect"

	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/noc/networking/arbitration"
	"github.com/sarchlab/msisim/sim"
	"github.com/sarchlab/msisim/tracing"
)

type busState int

const (
	busStateIdle busState = iota
	busStateSnoop
	busStateFetch
	busStateWriteLower
	busStateComplete
)

// Stats counts what happened on the bus.
type Stats struct {
	Reads          uint64
	ReadExclusives uint64
	Upgrades       uint64
	Flushes        uint64
	SnoopHits      uint64
	CacheToCache   uint64
	LowerFetches   uint64
	LowerWrites    uint64
}

// Comp is the bus arbiter. It grants the bus to one agent at a time, lets
// the other agents snoop the transaction and sources the data either from a
// snooping agent or from the shared cache.
type Comp struct {
	*sim.ComponentBase

	agents       []Agent
	bottomPorts  []sim.Port
	lowModules   []sim.RemotePort
	arbiter      arbitration.Arbiter
	snoopLatency int
	lineSize     uint64

	state      busState
	current    *Transaction
	snoopWait  int
	lowReq     mem.AccessReq
	lowReqSent bool

	stats Stats
}

// ConnectAgent attaches an agent to the i-th slot of the bus.
func (c *Comp) ConnectAgent(i int, agent Agent) {
	c.agents[i] = agent
}

// ConnectLowModule sets the shared-cache port that serves the i-th agent.
func (c *Comp) ConnectLowModule(i int, port sim.RemotePort) {
	c.lowModules[i] = port
}

// BottomPort returns the port that forwards the i-th agent's requests to the
// shared cache.
func (c *Comp) BottomPort(i int) sim.Port {
	return c.bottomPorts[i]
}

// Current returns the transaction that holds the bus, or nil.
func (c *Comp) Current() *Transaction {
	return c.current
}

// Stats returns the counters of the bus.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Tick advances the bus by one cycle.
func (c *Comp) Tick() bool {
	switch c.state {
	case busStateIdle:
		return c.grant()
	case busStateSnoop:
		return c.snoop()
	case busStateFetch, busStateWriteLower:
		return c.accessLower()
	case busStateComplete:
		return c.complete()
	default:
		log.Panicf("bus %s in unknown state %d", c.Name(), c.state)
	}

	return false
}

func (c *Comp) grant() bool {
	requests := make([]Request, len(c.agents))
	requesting := make([]bool, len(c.agents))

	for i, agent := range c.agents {
		if agent == nil {
			log.Panicf("bus %s has no agent at slot %d", c.Name(), i)
		}

		requests[i], requesting[i] = agent.BusRequest()
	}

	winner, granted := c.arbiter.Arbitrate(requesting)
	if !granted {
		return false
	}

	req := requests[winner]
	c.current = &Transaction{
		ID:        sim.GetIDGenerator().Generate(),
		Command:   req.Command,
		Address:   req.Address,
		Requester: winner,
		DataOut:   req.Data,
		Supplier:  -1,
	}
	c.countCommand(req.Command)

	tracing.StartTask(c.current.ID, "", c, "bus_txn",
		req.Command.String(), c.current)

	if req.Command == coherence.Flush {
		c.startLowerWrite(req.Data)
		return true
	}

	c.state = busStateSnoop
	c.snoopWait = c.snoopLatency

	if c.snoopWait == 0 {
		c.snoop()
	}

	return true
}

func (c *Comp) countCommand(cmd coherence.Command) {
	switch cmd {
	case coherence.Read:
		c.stats.Reads++
	case coherence.ReadExclusive:
		c.stats.ReadExclusives++
	case coherence.Upgrade:
		c.stats.Upgrades++
	case coherence.Flush:
		c.stats.Flushes++
	}
}

func (c *Comp) snoop() bool {
	if c.snoopWait > 0 {
		c.snoopWait--

		if c.snoopWait > 0 {
			return true
		}
	}

	txn := c.current
	supplier := -1

	var supplied SnoopRsp

	for i, agent := range c.agents {
		if i == txn.Requester {
			continue
		}

		rsp := agent.Snoop(txn)
		if !rsp.Hit {
			continue
		}

		c.stats.SnoopHits++

		if rsp.Data != nil && supplier < 0 {
			supplier = i
			supplied = rsp
		}
	}

	c.resolve(supplier, supplied)

	return true
}

func (c *Comp) resolve(supplier int, supplied SnoopRsp) {
	txn := c.current

	if supplier >= 0 {
		txn.DataIn = supplied.Data
		txn.Supplier = supplier
		c.stats.CacheToCache++
		tracing.AddTaskStep(txn.ID, c, "cache-to-cache")
	}

	switch {
	case supplier >= 0 && txn.Command == coherence.Read && supplied.WasModified:
		c.startLowerWrite(supplied.Data)
	case supplier >= 0 || !txn.Command.NeedsData():
		c.state = busStateComplete
	default:
		c.startLowerRead()
	}
}

func (c *Comp) startLowerRead() {
	port := c.bottomPorts[c.current.Requester]
	c.lowReq = mem.ReadReqBuilder{}.
		WithSrc(port.AsRemote()).
		WithDst(c.lowModules[c.current.Requester]).
		WithAddress(c.current.Address).
		WithByteSize(c.lineSize).
		Build()
	c.lowReqSent = false
	c.state = busStateFetch

	tracing.AddTaskStep(c.current.ID, c, "lower-fetch")
}

func (c *Comp) startLowerWrite(data []byte) {
	if uint64(len(data)) != c.lineSize {
		log.Panicf("bus %s can only write whole lines, got %d bytes",
			c.Name(), len(data))
	}

	port := c.bottomPorts[c.current.Requester]
	c.lowReq = mem.WriteReqBuilder{}.
		WithSrc(port.AsRemote()).
		WithDst(c.lowModules[c.current.Requester]).
		WithAddress(c.current.Address).
		WithData(data).
		Build()
	c.lowReqSent = false
	c.state = busStateWriteLower

	tracing.AddTaskStep(c.current.ID, c, "lower-write")
}

func (c *Comp) accessLower() bool {
	port := c.bottomPorts[c.current.Requester]

	if !c.lowReqSent {
		if err := port.Send(c.lowReq); err != nil {
			return false
		}

		c.lowReqSent = true

		return true
	}

	msg := port.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(mem.AccessRsp)
	if !ok || rsp.GetRspTo() != c.lowReq.Meta().ID {
		log.Panicf("bus %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	switch rsp := rsp.(type) {
	case *mem.DataReadyRsp:
		c.current.DataIn = rsp.Data
		c.stats.LowerFetches++
	case *mem.WriteDoneRsp:
		c.stats.LowerWrites++
	}

	port.RetrieveIncoming()

	c.lowReq = nil
	c.state = busStateComplete

	return true
}

func (c *Comp) complete() bool {
	txn := c.current

	c.agents[txn.Requester].Complete(txn)
	tracing.EndTask(txn.ID, c)

	c.current = nil
	c.state = busStateIdle

	return true
}
