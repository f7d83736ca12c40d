package sim

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

var (
	idGeneratorMutex sync.Mutex
	idGenerator      IDGenerator
)

// UseSequentialIDGenerator configures the ID generator to generate IDs in
// sequential. Sequential IDs keep runs with the same seed reproducible.
func UseSequentialIDGenerator() {
	setIDGenerator(&sequentialIDGenerator{})
}

// UseParallelIDGenerator configurs the ID generator to generate globally
// unique IDs. The IDs generated will not be deterministic anymore.
func UseParallelIDGenerator() {
	setIDGenerator(parallelIDGenerator{})
}

func setIDGenerator(g IDGenerator) {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	if idGenerator != nil {
		log.Panic("cannot change id generator type after using it")
	}

	idGenerator = g
}

// GetIDGenerator returns the ID generator used in the current simulation
func GetIDGenerator() IDGenerator {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	if idGenerator == nil {
		idGenerator = &sequentialIDGenerator{}
	}

	return idGenerator
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct{}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
