// Package memaccessagent provides a CPU stand-in that drives a cache with
// scripted or random word accesses and checks the values it reads.
package memaccessagent

import (
	"encoding/binary"
	"log"
	"math/rand"
	"reflect"

	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/sim"
	"github.com/sarchlab/msisim/tracing"
)

// OpKind is either a read or a write.
type OpKind int

// The kinds of operations.
const (
	ReadOp OpKind = iota
	WriteOp
)

func (k OpKind) String() string {
	if k == WriteOp {
		return "write"
	}

	return "read"
}

// An Op is a 4-byte access that the agent issues.
type Op struct {
	Kind    OpKind
	Address uint64
	Data    uint32

	// Mask is the byte-enable of a write. Bit i enables byte i of Data.
	Mask uint8
}

// Read creates a read of the word at addr.
func Read(addr uint64) Op {
	return Op{Kind: ReadOp, Address: addr}
}

// Write creates a write of the whole word at addr.
func Write(addr uint64, data uint32) Op {
	return Op{Kind: WriteOp, Address: addr, Data: data, Mask: 0xF}
}

// MaskedWrite creates a write of the enabled bytes of the word at addr.
func MaskedWrite(addr uint64, data uint32, mask uint8) Op {
	return Op{Kind: WriteOp, Address: addr, Data: data, Mask: mask}
}

// A Result records a completed operation.
type Result struct {
	Op            Op
	Data          uint32
	IssueCycle    uint64
	CompleteCycle uint64
}

// A Mismatch is a read that returned a value it cannot legally observe.
type Mismatch struct {
	Address  uint64
	Got      uint32
	Expected []uint32
	Cycle    uint64
}

type inflightOp struct {
	op     Op
	req    mem.AccessReq
	issue  uint64
	handle *WriteHandle
}

// A MemAccessAgent is a Component that can help testing the caches by
// generating read and write requests. It issues one request at a time: the
// scripted operations first, then random ones.
type MemAccessAgent struct {
	*sim.ComponentBase

	LowModule  sim.RemotePort
	MaxAddress uint64
	WriteLeft  int
	ReadLeft   int
	Golden     *GoldenMemory

	rand       *rand.Rand
	memPort    sim.Port
	script     []Op
	staged     *Op
	inflight   *inflightOp
	results    []Result
	mismatches []Mismatch
	cycle      uint64
}

// MemPort returns the port that sends requests to the cache.
func (a *MemAccessAgent) MemPort() sim.Port {
	return a.memPort
}

// Enqueue appends operations to the script.
func (a *MemAccessAgent) Enqueue(ops ...Op) {
	a.script = append(a.script, ops...)
}

// Results returns the completed operations in completion order.
func (a *MemAccessAgent) Results() []Result {
	return a.results
}

// Mismatches returns the reads that returned unexpected values.
func (a *MemAccessAgent) Mismatches() []Mismatch {
	return a.mismatches
}

// Finished returns true if the agent has nothing left to issue or wait for.
func (a *MemAccessAgent) Finished() bool {
	return a.inflight == nil &&
		a.staged == nil &&
		len(a.script) == 0 &&
		a.ReadLeft == 0 &&
		a.WriteLeft == 0
}

// Tick updates the states of the agent and issues new read and write requests.
func (a *MemAccessAgent) Tick() bool {
	madeProgress := a.processMsgRsp()

	if a.inflight == nil {
		madeProgress = a.issue() || madeProgress
	}

	a.cycle++

	return madeProgress
}

func (a *MemAccessAgent) processMsgRsp() bool {
	msg := a.memPort.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(mem.AccessRsp)
	if !ok || a.inflight == nil || rsp.GetRspTo() != a.inflight.req.Meta().ID {
		log.Panicf("agent %s cannot handle %s", a.Name(), reflect.TypeOf(msg))
	}

	a.memPort.RetrieveIncoming()

	f := a.inflight
	result := Result{
		Op:            f.op,
		IssueCycle:    f.issue,
		CompleteCycle: a.cycle,
	}

	switch rsp := rsp.(type) {
	case *mem.DataReadyRsp:
		result.Data = binary.LittleEndian.Uint32(rsp.Data)
		a.checkRead(f, result.Data)
	case *mem.WriteDoneRsp:
		a.Golden.CompleteWrite(f.handle, a.cycle)
	}

	tracing.TraceReqFinalize(f.req, a)

	a.results = append(a.results, result)
	a.inflight = nil

	return true
}

func (a *MemAccessAgent) checkRead(f *inflightOp, got uint32) {
	addr := f.op.Address
	if a.Golden.Check(addr, got, f.issue, a.cycle) {
		return
	}

	a.mismatches = append(a.mismatches, Mismatch{
		Address:  addr,
		Got:      got,
		Expected: a.Golden.Acceptable(addr, f.issue, a.cycle),
		Cycle:    a.cycle,
	})
}

func (a *MemAccessAgent) issue() bool {
	if a.staged == nil && !a.stageNext() {
		return false
	}

	op := *a.staged
	req := a.buildReq(op)

	if err := a.memPort.Send(req); err != nil {
		return false
	}

	tracing.TraceReqInitiate(req, a, "")

	f := &inflightOp{op: op, req: req, issue: a.cycle}
	if op.Kind == WriteOp {
		f.handle = a.Golden.StartWrite(op.Address, op.Data, op.Mask, a.cycle)
	}

	a.inflight = f
	a.staged = nil

	return true
}

func (a *MemAccessAgent) stageNext() bool {
	if len(a.script) > 0 {
		op := a.script[0]
		a.script = a.script[1:]
		a.staged = &op

		return true
	}

	if a.ReadLeft == 0 && a.WriteLeft == 0 {
		return false
	}

	var op Op
	if a.shouldRead() {
		known := a.Golden.KnownAddresses()
		op = Read(known[a.rand.Intn(len(known))])
		a.ReadLeft--
	} else {
		op = Write(a.randomAddress(), a.rand.Uint32())
		a.WriteLeft--
	}

	a.staged = &op

	return true
}

func (a *MemAccessAgent) shouldRead() bool {
	if len(a.Golden.KnownAddresses()) == 0 {
		return false
	}

	if a.ReadLeft == 0 {
		return false
	}

	if a.WriteLeft == 0 {
		return true
	}

	return a.rand.Float64() > 0.5
}

func (a *MemAccessAgent) randomAddress() uint64 {
	return uint64(a.rand.Int63n(int64(a.MaxAddress/4))) * 4
}

func (a *MemAccessAgent) buildReq(op Op) mem.AccessReq {
	if op.Kind == ReadOp {
		return mem.ReadReqBuilder{}.
			WithSrc(a.memPort.AsRemote()).
			WithDst(a.LowModule).
			WithAddress(op.Address).
			WithByteSize(4).
			Build()
	}

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, op.Data)

	return mem.WriteReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.LowModule).
		WithAddress(op.Address).
		WithData(data).
		WithDirtyMask(mem.ByteEnable(op.Mask, 4)).
		Build()
}
