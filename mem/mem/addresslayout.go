package mem

import "log"

// AddressLayout splits a byte address into a tag, a set index and a line
// offset. From the most significant bit down, an address is
// [tag | set ID | offset].
type AddressLayout struct {
	Log2LineSize uint64
	Log2NumSets  uint64
	AddressBits  uint64
}

// MakeAddressLayout creates an AddressLayout and checks that the fields fit
// into the address.
func MakeAddressLayout(
	log2LineSize, log2NumSets, addressBits uint64,
) AddressLayout {
	if log2LineSize+log2NumSets > addressBits || addressBits > 64 {
		log.Panicf("cannot fit %d offset bits and %d set bits into %d bits",
			log2LineSize, log2NumSets, addressBits)
	}

	return AddressLayout{
		Log2LineSize: log2LineSize,
		Log2NumSets:  log2NumSets,
		AddressBits:  addressBits,
	}
}

// LineSize returns the number of bytes in a line.
func (l AddressLayout) LineSize() uint64 {
	return 1 << l.Log2LineSize
}

// NumSets returns the number of sets.
func (l AddressLayout) NumSets() int {
	return 1 << l.Log2NumSets
}

// TagBits returns the width of the tag field.
func (l AddressLayout) TagBits() uint64 {
	return l.AddressBits - l.Log2NumSets - l.Log2LineSize
}

// Contains tells whether the address fits in AddressBits.
func (l AddressLayout) Contains(addr uint64) bool {
	return l.AddressBits >= 64 || addr>>l.AddressBits == 0
}

// Offset returns the byte offset of the address inside its line.
func (l AddressLayout) Offset(addr uint64) uint64 {
	return addr & (l.LineSize() - 1)
}

// SetID returns the index of the set that the address maps to.
func (l AddressLayout) SetID(addr uint64) int {
	return int((addr >> l.Log2LineSize) & (uint64(l.NumSets()) - 1))
}

// Tag returns the tag field of the address.
func (l AddressLayout) Tag(addr uint64) uint64 {
	tag := addr >> (l.Log2LineSize + l.Log2NumSets)

	return tag & (1<<l.TagBits() - 1)
}

// LineAddr aligns the address down to the start of its line.
func (l AddressLayout) LineAddr(addr uint64) uint64 {
	return addr &^ (l.LineSize() - 1)
}

// Compose rebuilds the line address from a tag and a set ID.
func (l AddressLayout) Compose(tag uint64, setID int) uint64 {
	return tag<<(l.Log2LineSize+l.Log2NumSets) |
		uint64(setID)<<l.Log2LineSize
}
