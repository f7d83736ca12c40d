package sim

import (
	"log"
	"sync"
)

// HookPosPortMsgSend marks when a message is sent out from the port.
var HookPosPortMsgSend = &HookPos{Name: "Port Msg Send"}

// HookPosPortMsgRecvd marks when an inbound message arrives at a the given port
var HookPosPortMsgRecvd = &HookPos{Name: "Port Msg Recv"}

// HookPosPortMsgRetrieveIncoming marks when an inbound message is retrieved
// from the incoming buffer.
var HookPosPortMsgRetrieveIncoming = &HookPos{
	Name: "Port Msg Retrieve Incoming",
}

// A RemotePort is a string that refers to another port.
type RemotePort string

// SendError marks a failure send or receive
type SendError struct{}

// NewSendError creates a SendError
func NewSendError() *SendError {
	return &SendError{}
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return "port busy"
}

// A Connection moves messages between the ports plugged into it.
type Connection interface {
	Named

	PlugIn(port Port)
}

// A Port is owned by a component and is used to plugin connections
type Port interface {
	Named
	Hookable

	AsRemote() RemotePort

	SetConnection(conn Connection)
	Component() Component

	// For connection
	Deliver(msg Msg) *SendError
	RetrieveOutgoing() Msg
	PeekOutgoing() Msg

	// For component
	CanSend() bool
	Send(msg Msg) *SendError
	RetrieveIncoming() Msg
	PeekIncoming() Msg
}

type defaultPort struct {
	HookableBase

	lock sync.Mutex
	name string
	comp Component
	conn Connection

	incomingBuf Buffer
	outgoingBuf Buffer
}

// NewPort creates a new port with default behavior. A message sent through
// the port stays in the outgoing buffer until the connection moves it.
func NewPort(
	comp Component,
	incomingBufCap, outgoingBufCap int,
	name string,
) Port {
	p := new(defaultPort)
	p.comp = comp
	p.incomingBuf = NewBuffer(name+".IncomingBuf", incomingBufCap)
	p.outgoingBuf = NewBuffer(name+".OutgoingBuf", outgoingBufCap)
	p.name = name

	return p
}

func (p *defaultPort) AsRemote() RemotePort {
	return RemotePort(p.name)
}

func (p *defaultPort) SetConnection(conn Connection) {
	if p.conn != nil {
		log.Panicf("port %s already connected to %s, now connecting to %s",
			p.name, p.conn.Name(), conn.Name())
	}

	p.conn = conn
}

func (p *defaultPort) Component() Component {
	return p.comp
}

func (p *defaultPort) Name() string {
	return p.name
}

func (p *defaultPort) CanSend() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.outgoingBuf.CanPush()
}

func (p *defaultPort) Send(msg Msg) *SendError {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.msgMustBeValid(msg)

	if !p.outgoingBuf.CanPush() {
		return NewSendError()
	}

	p.outgoingBuf.Push(msg)

	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosPortMsgSend,
		Item:   msg,
	})

	return nil
}

func (p *defaultPort) Deliver(msg Msg) *SendError {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.incomingBuf.CanPush() {
		return NewSendError()
	}

	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosPortMsgRecvd,
		Item:   msg,
	})

	p.incomingBuf.Push(msg)

	return nil
}

func (p *defaultPort) RetrieveIncoming() Msg {
	p.lock.Lock()
	item := p.incomingBuf.Pop()
	p.lock.Unlock()

	if item == nil {
		return nil
	}

	msg := item.(Msg)
	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosPortMsgRetrieveIncoming,
		Item:   msg,
	})

	return msg
}

func (p *defaultPort) RetrieveOutgoing() Msg {
	p.lock.Lock()
	defer p.lock.Unlock()

	item := p.outgoingBuf.Pop()
	if item == nil {
		return nil
	}

	return item.(Msg)
}

func (p *defaultPort) PeekIncoming() Msg {
	p.lock.Lock()
	defer p.lock.Unlock()

	item := p.incomingBuf.Peek()
	if item == nil {
		return nil
	}

	return item.(Msg)
}

func (p *defaultPort) PeekOutgoing() Msg {
	p.lock.Lock()
	defer p.lock.Unlock()

	item := p.outgoingBuf.Peek()
	if item == nil {
		return nil
	}

	return item.(Msg)
}

func (p *defaultPort) msgMustBeValid(msg Msg) {
	if p.name != string(msg.Meta().Src) {
		log.Panicf("sending port %s is not msg src %s",
			p.name, msg.Meta().Src)
	}

	if msg.Meta().Dst == "" {
		log.Panic("dst is not given")
	}

	if msg.Meta().Src == msg.Meta().Dst {
		log.Panic("sending back to src")
	}
}
