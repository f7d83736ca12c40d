// Package bus models a snooping bus that serializes coherence transactions
// between private caches and forwards what the caches cannot serve to the
// shared cache.
package bus

import (
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/sim"
)

// A Request is what an agent asks the bus to do when it is granted.
type Request struct {
	Command coherence.Command
	Address uint64

	// Data carries the line to write back for a Flush.
	Data []byte
}

// A Transaction is the single transaction that holds the bus.
type Transaction struct {
	ID        string
	Command   coherence.Command
	Address   uint64
	Requester int

	// DataOut is the line sent by the requester.
	DataOut []byte

	// DataIn is the line delivered to the requester.
	DataIn []byte

	// Supplier is the index of the agent that supplied DataIn, or -1 if the
	// data came from the shared cache.
	Supplier int
}

// SnoopRsp is how an agent answers a snooped transaction.
type SnoopRsp struct {
	Hit         bool
	Data        []byte
	WasModified bool
}

// An Agent is a cache that sits on the bus.
type Agent interface {
	sim.Named

	// BusRequest returns the request that the agent wants to put on the bus
	// in the current cycle.
	BusRequest() (Request, bool)

	// Snoop lets the agent observe a transaction of another agent. The agent
	// updates its own line state before returning.
	Snoop(txn *Transaction) SnoopRsp

	// Complete tells the agent that its transaction is done.
	Complete(txn *Transaction)
}
