package tagging

// A VictimFinder decides with block should be evicted
type VictimFinder interface {
	FindVictim(set *Set, tag uint64) *Block
}

// LRUVictimFinder evicts the least recently used block to evict
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the least recently used block in a set
func (e *LRUVictimFinder) FindVictim(set *Set, tag uint64) *Block {
	return ChooseVictim(set, tag)
}
