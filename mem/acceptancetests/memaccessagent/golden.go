package memaccessagent

// A WriteHandle tracks one write in a GoldenMemory.
type WriteHandle struct {
	addr     uint64
	value    uint32
	mask     uint8
	issue    uint64
	complete uint64
	done     bool
}

type commit struct {
	value uint32
	cycle uint64
}

type wordHistory struct {
	commits []commit
	writes  []*WriteHandle
}

// GoldenMemory is the reference model that the agents of all cores share. It
// records when each write is issued and completed so that a read racing with
// writes from another core can be checked against every value it may
// legally observe.
type GoldenMemory struct {
	words map[uint64]*wordHistory
	addrs []uint64
}

// NewGoldenMemory creates a golden memory in which every word is zero.
func NewGoldenMemory() *GoldenMemory {
	return &GoldenMemory{
		words: make(map[uint64]*wordHistory),
	}
}

// KnownAddresses returns the word addresses that have been written, in the
// order they were first written.
func (g *GoldenMemory) KnownAddresses() []uint64 {
	return g.addrs
}

func (g *GoldenMemory) word(addr uint64) *wordHistory {
	w, ok := g.words[addr]
	if !ok {
		w = &wordHistory{}
		g.words[addr] = w
		g.addrs = append(g.addrs, addr)
	}

	return w
}

// StartWrite records that a write is issued.
func (g *GoldenMemory) StartWrite(
	addr uint64,
	value uint32,
	mask uint8,
	cycle uint64,
) *WriteHandle {
	h := &WriteHandle{
		addr:  addr,
		value: value,
		mask:  mask,
		issue: cycle,
	}

	w := g.word(addr)
	w.writes = append(w.writes, h)

	return h
}

// CompleteWrite records that the write is acknowledged. Writes take effect in
// the order they complete.
func (g *GoldenMemory) CompleteWrite(h *WriteHandle, cycle uint64) {
	h.done = true
	h.complete = cycle

	w := g.words[h.addr]
	base := w.valueAt(cycle)
	w.commits = append(w.commits, commit{
		value: mergeWord(base, h.value, h.mask),
		cycle: cycle,
	})
}

// Value returns the latest committed value of a word.
func (g *GoldenMemory) Value(addr uint64) uint32 {
	w, ok := g.words[addr]
	if !ok || len(w.commits) == 0 {
		return 0
	}

	return w.commits[len(w.commits)-1].value
}

// Acceptable returns the values that a read of addr, issued at issue and
// completed at complete, may return.
func (g *GoldenMemory) Acceptable(addr uint64, issue, complete uint64) []uint32 {
	w, ok := g.words[addr]
	if !ok {
		return []uint32{0}
	}

	base := w.valueAt(issue)
	values := []uint32{base}

	for _, h := range w.writes {
		if h.issue > complete {
			continue
		}

		if h.done && h.complete <= issue {
			continue
		}

		values = append(values, mergeWord(base, h.value, h.mask))
	}

	return values
}

// Check returns true if got is one of the acceptable values of a read.
func (g *GoldenMemory) Check(addr uint64, got uint32, issue, complete uint64) bool {
	for _, v := range g.Acceptable(addr, issue, complete) {
		if v == got {
			return true
		}
	}

	return false
}

func (w *wordHistory) valueAt(cycle uint64) uint32 {
	value := uint32(0)

	for _, c := range w.commits {
		if c.cycle > cycle {
			break
		}

		value = c.value
	}

	return value
}

func mergeWord(base, value uint32, mask uint8) uint32 {
	for i := 0; i < 4; i++ {
		if mask&(1<<i) == 0 {
			continue
		}

		byteMask := uint32(0xFF) << (8 * i)
		base = base&^byteMask | value&byteMask
	}

	return base
}
