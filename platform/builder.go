package platform

import (
	"fmt"

	"github.com/sarchlab/msisim/mem/backingstore"
	"github.com/sarchlab/msisim/mem/cache/privatecache"
	"github.com/sarchlab/msisim/mem/cache/sharedcache"
	"github.com/sarchlab/msisim/noc/bus"
	"github.com/sarchlab/msisim/sim"
)

const numCores = 2

// A Builder can build platforms.
type Builder struct {
	engine sim.Engine
	config Config
}

// MakeBuilder returns a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithEngine sets the engine that drives the platform.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig replaces the configuration.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// Build creates a platform. It panics if the configuration is invalid.
func (b Builder) Build(name string) *Platform {
	if err := b.config.Validate(); err != nil {
		panic(err)
	}

	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}

	p := &Platform{
		Engine:    b.engine,
		maxCycles: b.config.MaxCycles,
	}
	p.TickingComponent = sim.NewTickingComponent(
		name, b.engine, b.config.Freq, p)

	b.buildL1s(p, name)
	b.buildBus(p, name)
	b.buildL2(p, name)
	b.buildMemory(p, name)
	b.connect(p, name)

	p.AddMiddleware(p.Bus)
	for _, l1 := range p.L1s {
		p.AddMiddleware(l1)
	}
	p.AddMiddleware(p.L2)
	p.AddMiddleware(p.Memory)

	for _, conn := range p.Connections {
		p.AddMiddleware(conn)
	}

	return p
}

func (b Builder) buildL1s(p *Platform, name string) {
	for i := 0; i < numCores; i++ {
		l1 := privatecache.MakeBuilder().
			WithLog2LineSize(b.config.Log2LineSize).
			WithLog2NumSets(b.config.L1Log2NumSets).
			WithAddressBits(b.config.AddressBits).
			WithNumWays(b.config.L1NumWays).
			WithBufSize(b.config.PortBufferSize).
			Build(fmt.Sprintf("%s.L1[%d]", name, i))
		p.L1s = append(p.L1s, l1)
	}
}

func (b Builder) buildBus(p *Platform, name string) {
	p.Bus = bus.MakeBuilder().
		WithNumAgents(numCores).
		WithSnoopLatency(b.config.SnoopLatency).
		WithLineSize(b.config.LineSize()).
		WithBufSize(b.config.PortBufferSize).
		Build(name + ".Bus")

	for i, l1 := range p.L1s {
		p.Bus.ConnectAgent(i, l1)
	}
}

func (b Builder) buildL2(p *Platform, name string) {
	p.L2 = sharedcache.MakeBuilder().
		WithLog2LineSize(b.config.Log2LineSize).
		WithLog2NumSets(b.config.L2Log2NumSets).
		WithAddressBits(b.config.AddressBits).
		WithNumWays(b.config.L2NumWays).
		WithNumPorts(numCores).
		WithBufSize(b.config.PortBufferSize).
		Build(name + ".L2")

	for i := 0; i < numCores; i++ {
		p.Bus.ConnectLowModule(i, p.L2.TopPort(i).AsRemote())
	}
}

func (b Builder) buildMemory(p *Platform, name string) {
	p.Memory = backingstore.MakeBuilder().
		WithLatency(b.config.MemLatency).
		WithNewStorage(b.config.MemCapacity).
		WithLineSize(b.config.LineSize()).
		WithTopBufSize(b.config.PortBufferSize).
		Build(name + ".Memory")

	p.L2.SetLowModule(p.Memory.TopPort().AsRemote())
}

func (b Builder) connect(p *Platform, name string) {
	for i, l1 := range p.L1s {
		conn := sim.NewDirectConnection(fmt.Sprintf("%s.CPU[%d]Conn", name, i))
		conn.PlugIn(l1.TopPort())
		p.cpuConns = append(p.cpuConns, conn)
		p.Connections = append(p.Connections, conn)
	}

	busConn := sim.NewDirectConnection(name + ".BusConn")
	for i := 0; i < numCores; i++ {
		busConn.PlugIn(p.Bus.BottomPort(i))
		busConn.PlugIn(p.L2.TopPort(i))
	}

	memConn := sim.NewDirectConnection(name + ".MemConn")
	memConn.PlugIn(p.L2.BottomPort())
	memConn.PlugIn(p.Memory.TopPort())

	p.Connections = append(p.Connections, busConn, memConn)
}
