// Package arbitration provides arbiters that pick one winner among several
// requesters.
package arbitration

import "log"

// An Arbiter picks one of the inputs that are requesting in a cycle.
type Arbiter interface {
	// Arbitrate returns the index of the granted input. It returns false if
	// no input is requesting.
	Arbitrate(requests []bool) (int, bool)
}

// RoundRobin grants the first requesting input after the one that was
// granted last, so that an input that keeps requesting cannot starve the
// others.
type RoundRobin struct {
	numInputs   int
	lastGranted int
}

// NewRoundRobin creates a round-robin arbiter over n inputs. Before the first
// grant, input 0 has the highest priority.
func NewRoundRobin(n int) *RoundRobin {
	if n <= 0 {
		log.Panic("round-robin arbiter needs at least one input")
	}

	return &RoundRobin{
		numInputs:   n,
		lastGranted: n - 1,
	}
}

// Arbitrate grants one of the requesting inputs.
func (a *RoundRobin) Arbitrate(requests []bool) (int, bool) {
	if len(requests) != a.numInputs {
		log.Panicf("expecting %d requests, got %d",
			a.numInputs, len(requests))
	}

	for i := 1; i <= a.numInputs; i++ {
		candidate := (a.lastGranted + i) % a.numInputs
		if requests[candidate] {
			a.lastGranted = candidate
			return candidate, true
		}
	}

	return 0, false
}

// LastGranted returns the index of the input granted most recently.
func (a *RoundRobin) LastGranted() int {
	return a.lastGranted
}
