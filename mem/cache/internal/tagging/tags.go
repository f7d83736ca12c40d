package tagging

import (
	"github.com/sarchlab/msisim/mem/coherence"
	"github.com/sarchlab/msisim/mem/mem"
)

// A Block of a cache is the information that is associated with a cache line.
// The bytes of the line live in the cache's storage at CacheAddress.
type Block struct {
	Tag          uint64
	WayID        int
	SetID        int
	CacheAddress uint64
	IsValid      bool
	IsDirty      bool
	State        coherence.State

	// Recency orders the blocks of a set. The most recently visited block has
	// the highest value and the least recently visited block has 0.
	Recency int
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks []Block
}

// FindHit returns the valid block in the set that holds the tag.
func FindHit(set *Set, tag uint64) (*Block, bool) {
	for i := range set.Blocks {
		block := &set.Blocks[i]
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return nil, false
}

// ChooseVictim picks the block to replace for a new tag. An invalid block
// that last held the same tag is reused first, then any invalid block, then
// the least recently used one.
func ChooseVictim(set *Set, tag uint64) *Block {
	var firstInvalid, lru *Block

	for i := range set.Blocks {
		block := &set.Blocks[i]

		if !block.IsValid {
			if block.Tag == tag {
				return block
			}

			if firstInvalid == nil {
				firstInvalid = block
			}

			continue
		}

		if lru == nil || block.Recency < lru.Recency {
			lru = block
		}
	}

	if firstInvalid != nil {
		return firstInvalid
	}

	return lru
}

// TagArray holds the blocks of a set-associative cache.
type TagArray struct {
	layout       mem.AddressLayout
	numWays      int
	sets         []Set
	victimFinder VictimFinder
}

// NewTagArray creates a tag array with all blocks invalid.
func NewTagArray(layout mem.AddressLayout, numWays int) *TagArray {
	t := &TagArray{
		layout:       layout,
		numWays:      numWays,
		victimFinder: NewLRUVictimFinder(),
	}

	t.Reset()

	return t
}

// WithVictimFinder replaces the replacement policy.
func (t *TagArray) WithVictimFinder(vf VictimFinder) *TagArray {
	t.victimFinder = vf
	return t
}

// Layout returns how addresses map onto the array.
func (t *TagArray) Layout() mem.AddressLayout {
	return t.layout
}

// NumWays returns the associativity.
func (t *TagArray) NumWays() int {
	return t.numWays
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *TagArray) TotalSize() uint64 {
	return uint64(len(t.sets)) * uint64(t.numWays) * t.layout.LineSize()
}

// GetSet returns the set that a certain address maps to.
func (t *TagArray) GetSet(addr uint64) (set *Set, setID int) {
	setID = t.layout.SetID(addr)
	set = &t.sets[setID]

	return
}

// Lookup returns the valid block that holds the address.
func (t *TagArray) Lookup(addr uint64) (*Block, bool) {
	set, _ := t.GetSet(addr)

	return FindHit(set, t.layout.Tag(addr))
}

// FindVictim returns the block that a line at addr should be installed into.
func (t *TagArray) FindVictim(addr uint64) *Block {
	set, _ := t.GetSet(addr)

	return t.victimFinder.FindVictim(set, t.layout.Tag(addr))
}

// Visit makes the block the most recently used one of its set.
func (t *TagArray) Visit(block *Block) {
	set := &t.sets[block.SetID]
	old := block.Recency

	for i := range set.Blocks {
		if set.Blocks[i].Recency > old {
			set.Blocks[i].Recency--
		}
	}

	block.Recency = t.numWays - 1
}

// BlockAddr returns the line address of the data held by the block.
func (t *TagArray) BlockAddr(block *Block) uint64 {
	return t.layout.Compose(block.Tag, block.SetID)
}

// ValidBlocks returns all the valid blocks, set by set.
func (t *TagArray) ValidBlocks() []*Block {
	var blocks []*Block

	for s := range t.sets {
		for w := range t.sets[s].Blocks {
			if t.sets[s].Blocks[w].IsValid {
				blocks = append(blocks, &t.sets[s].Blocks[w])
			}
		}
	}

	return blocks
}

// Reset will mark all the blocks in the array invalid
func (t *TagArray) Reset() {
	numSets := t.layout.NumSets()
	lineSize := t.layout.LineSize()

	t.sets = make([]Set, numSets)
	for i := 0; i < numSets; i++ {
		t.sets[i].Blocks = make([]Block, t.numWays)

		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks[j] = Block{
				SetID:        i,
				WayID:        j,
				CacheAddress: uint64(i*t.numWays+j) * lineSize,
				Recency:      j,
			}
		}
	}
}
