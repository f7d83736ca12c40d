package sim

import "log"

// DirectConnection connects ports without latency. Messages sent during a
// cycle are moved when the connection ticks, so the receiver sees them in
// the next cycle if the connection is ticked after all the senders.
type DirectConnection struct {
	name       string
	nextPortID int
	ports      []Port
	portByName map[RemotePort]Port
}

// NewDirectConnection creates a new DirectConnection object
func NewDirectConnection(name string) *DirectConnection {
	c := new(DirectConnection)
	c.name = name
	c.portByName = make(map[RemotePort]Port)

	return c
}

// Name returns the name of the connection.
func (c *DirectConnection) Name() string {
	return c.name
}

// PlugIn marks the port connects to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	if _, found := c.portByName[port.AsRemote()]; found {
		log.Panicf("port %s already plugged into %s", port.Name(), c.name)
	}

	c.ports = append(c.ports, port)
	c.portByName[port.AsRemote()] = port

	port.SetConnection(c)
}

// Tick moves messages from the outgoing buffers to the incoming buffers of
// the destinations. A message that cannot be delivered stays at the head of
// its source buffer and blocks the messages behind it.
func (c *DirectConnection) Tick() bool {
	if len(c.ports) == 0 {
		return false
	}

	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		madeProgress = c.forwardMany(c.ports[portID]) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)

	return madeProgress
}

func (c *DirectConnection) forwardMany(src Port) bool {
	madeProgress := false

	for {
		head := src.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := c.portByName[head.Meta().Dst]
		if !found {
			log.Panicf("port %s is not connected to %s",
				head.Meta().Dst, c.name)
		}

		if err := dst.Deliver(head); err != nil {
			break
		}

		src.RetrieveOutgoing()

		madeProgress = true
	}

	return madeProgress
}
