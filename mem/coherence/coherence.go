// Package coherence defines the MSI protocol vocabulary shared by the private
// caches and the bus, and a checker for the global coherence invariant.
package coherence

import "fmt"

// State is the coherence state of a line in a private cache.
type State int

// MSI states.
const (
	Invalid State = iota
	Shared
	Modified
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "Invalid"
	case Shared:
		return "Shared"
	case Modified:
		return "Modified"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Command is a bus command.
type Command int

// Bus commands.
const (
	// Read asks for a readable copy of a line.
	Read Command = iota
	// ReadExclusive asks for a writable copy of a line.
	ReadExclusive
	// Upgrade asks for write permission on a line already held Shared.
	Upgrade
	// Flush writes a Modified line back to the shared cache.
	Flush
)

func (c Command) String() string {
	switch c {
	case Read:
		return "Read"
	case ReadExclusive:
		return "ReadExclusive"
	case Upgrade:
		return "Upgrade"
	case Flush:
		return "Flush"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// NeedsData returns true if the command brings a line to the requester.
func (c Command) NeedsData() bool {
	return c == Read || c == ReadExclusive
}

// LineSnapshot is a copy of one valid line of a cache.
type LineSnapshot struct {
	Address uint64
	State   State
	Data    []byte
}

// Inspectable is a cache whose valid lines can be listed.
type Inspectable interface {
	Name() string
	ValidLines() []LineSnapshot
}
