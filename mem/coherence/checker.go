package coherence

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/sarchlab/msisim/sim"
)

// Violation records a broken coherence invariant.
type Violation struct {
	Cycle   uint64
	Address uint64
	Reason  string
}

type holder struct {
	cache string
	line  LineSnapshot
}

// Checker verifies that at most one cache holds a line Modified, that no
// cache holds a line Shared while another holds it Modified, and that all
// Shared copies of a line are identical.
type Checker struct {
	caches     []Inspectable
	cycle      func() uint64
	violations []Violation
}

// NewChecker creates a checker over the given caches.
func NewChecker(caches ...Inspectable) *Checker {
	return &Checker{caches: caches}
}

// WithCycleSource lets the checker stamp violations with the current cycle.
func (c *Checker) WithCycleSource(cycle func() uint64) *Checker {
	c.cycle = cycle
	return c
}

// Check returns an error that describes the first violated invariant, if
// any.
func (c *Checker) Check() error {
	violations := c.scan()
	if len(violations) == 0 {
		return nil
	}

	v := violations[0]

	return errors.Errorf("coherence violation at 0x%x: %s", v.Address, v.Reason)
}

// Func lets the checker run as a hook. Every violation found is recorded.
func (c *Checker) Func(_ sim.HookCtx) {
	c.violations = append(c.violations, c.scan()...)
}

// Violations returns the violations recorded while running as a hook.
func (c *Checker) Violations() []Violation {
	return c.violations
}

func (c *Checker) scan() []Violation {
	byAddr := make(map[uint64][]holder)

	for _, cache := range c.caches {
		for _, line := range cache.ValidLines() {
			byAddr[line.Address] = append(byAddr[line.Address],
				holder{cache: cache.Name(), line: line})
		}
	}

	addrs := make([]uint64, 0, len(byAddr))
	for addr := range byAddr {
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var violations []Violation

	for _, addr := range addrs {
		if reason := checkLine(byAddr[addr]); reason != "" {
			violations = append(violations, Violation{
				Cycle:   c.now(),
				Address: addr,
				Reason:  reason,
			})
		}
	}

	return violations
}

func (c *Checker) now() uint64 {
	if c.cycle == nil {
		return 0
	}

	return c.cycle()
}

func checkLine(holders []holder) string {
	var modified, shared []holder

	for _, h := range holders {
		switch h.line.State {
		case Modified:
			modified = append(modified, h)
		case Shared:
			shared = append(shared, h)
		}
	}

	if len(modified) > 1 {
		return "held Modified by " + modified[0].cache +
			" and " + modified[1].cache
	}

	if len(modified) == 1 && len(shared) > 0 {
		return "held Modified by " + modified[0].cache +
			" and Shared by " + shared[0].cache
	}

	for _, h := range shared[min(1, len(shared)):] {
		if !bytes.Equal(h.line.Data, shared[0].line.Data) {
			return "Shared copies in " + shared[0].cache +
				" and " + h.cache + " differ"
		}
	}

	return ""
}
