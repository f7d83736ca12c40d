package sim

import (
	"sync"
)

// TickEvent is a generic event that almost all the component can use to
// update their status.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent
func MakeTickEvent(handler Handler, time VTimeInSec) TickEvent {
	evt := TickEvent{}
	evt.ID = GetIDGenerator().Generate()
	evt.handler = handler
	evt.time = time
	evt.secondary = false

	return evt
}

// A Ticker is an object that updates states with ticks.
type Ticker interface {
	Tick() bool
}

// TickScheduler can help schedule tick events.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Freq      Freq
	Engine    Engine
	secondary bool

	nextTickTime VTimeInSec
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	ticker := new(TickScheduler)

	ticker.handler = handler
	ticker.Engine = engine
	ticker.Freq = freq
	ticker.nextTickTime = -1

	return ticker
}

// TickNow schedule a Tick event at the current time.
func (t *TickScheduler) TickNow() {
	t.lock.Lock()
	defer t.lock.Unlock()

	time := t.Freq.ThisTick(t.CurrentTime())
	if t.nextTickTime >= time {
		return
	}

	t.schedule(time)
}

// TickLater will schedule a tick event at the cycle after the now time.
func (t *TickScheduler) TickLater() {
	t.lock.Lock()
	defer t.lock.Unlock()

	time := t.Freq.NextTick(t.CurrentTime())
	if t.nextTickTime >= time {
		return
	}

	t.schedule(time)
}

func (t *TickScheduler) schedule(time VTimeInSec) {
	t.nextTickTime = time
	tick := MakeTickEvent(t.handler, time)
	tick.secondary = t.secondary

	t.Engine.Schedule(tick)
}

// CurrentTime returns the time of the engine that drives the scheduler.
func (t *TickScheduler) CurrentTime() VTimeInSec {
	return t.Engine.CurrentTime()
}

// CurrentCycle returns the number of cycles elapsed at the current time.
func (t *TickScheduler) CurrentCycle() uint64 {
	return t.Freq.Cycle(t.CurrentTime())
}

// TickingComponent is a type of component that update states from cycle to
// cycle. A programmer would only need to program a tick function for a ticking
// component.
type TickingComponent struct {
	*ComponentBase
	*TickScheduler

	ticker Ticker
}

// Handle triggers the tick function of the TickingComponent
func (c *TickingComponent) Handle(_ Event) error {
	madeProgress := c.ticker.Tick()
	if madeProgress {
		c.TickLater()
	}

	return nil
}

// NewTickingComponent creates a new ticking component
func NewTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewTickScheduler(tc, engine, freq)
	tc.ComponentBase = NewComponentBase(name)
	tc.ticker = ticker

	return tc
}
