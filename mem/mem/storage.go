package mem

import (
	"github.com/pkg/errors"
)

// For capacity
const (
	_       = iota
	KB uint64 = 1 << (10 * iota)
	MB
	GB
)

// A Storage keeps the bytes of a memory or of a cache's data array.
//
// The storage is managed in units. A unit is only allocated the first time an
// address inside it is touched, so a large and sparsely used storage costs
// little. Untouched bytes read as zero.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4 * KB
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Storage) rangeMustBeValid(address, length uint64) error {
	if address+length > s.capacity || address+length < address {
		return errors.Errorf(
			"accessing [0x%x, 0x%x) beyond the storage capacity 0x%x",
			address, address+length, s.capacity)
	}

	return nil
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	if err := s.rangeMustBeValid(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < length {
		unit := s.unit(currAddr)
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(length-dataOffset, baseAddr+s.unitSize-currAddr)

		copy(res[dataOffset:dataOffset+lenToRead],
			unit[inUnitAddr:inUnitAddr+lenToRead])

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write copies data into the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.rangeMustBeValid(address, length); err != nil {
		return err
	}

	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < length {
		unit := s.unit(currAddr)
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(length-dataOffset, baseAddr+s.unitSize-currAddr)

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])

		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}
