package platform

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/sim"
)

// EnvPrefix is the prefix of the environment variables that LoadConfig reads.
const EnvPrefix = "MSISIM_"

// Config holds the parameters of a platform.
type Config struct {
	Freq         sim.Freq
	AddressBits  uint64
	Log2LineSize uint64

	L1Log2NumSets uint64
	L1NumWays     int

	L2Log2NumSets uint64
	L2NumWays     int

	SnoopLatency   int
	MemLatency     int
	MemCapacity    uint64
	PortBufferSize int

	// MaxCycles stops a run that does not finish in time. Zero means no
	// limit.
	MaxCycles uint64
}

// DefaultConfig returns the configuration of the reference hierarchy: 32 KB
// 4-way L1s, a 128 KB 8-way L2, 64-byte lines and a 100-cycle memory.
func DefaultConfig() Config {
	return Config{
		Freq:           1 * sim.GHz,
		AddressBits:    32,
		Log2LineSize:   6,
		L1Log2NumSets:  7,
		L1NumWays:      4,
		L2Log2NumSets:  8,
		L2NumWays:      8,
		SnoopLatency:   1,
		MemLatency:     100,
		MemCapacity:    4 * mem.GB,
		PortBufferSize: 4,
		MaxCycles:      10_000_000,
	}
}

// LineSize returns the number of bytes in a cache line.
func (c Config) LineSize() uint64 {
	return 1 << c.Log2LineSize
}

// Validate returns an error if the configuration cannot be built.
func (c Config) Validate() error {
	if c.Freq <= 0 {
		return errors.New("frequency must be positive")
	}

	if c.Log2LineSize < 2 {
		return errors.Errorf("line size 2^%d cannot hold a word",
			c.Log2LineSize)
	}

	if c.AddressBits > 64 {
		return errors.Errorf("address width %d is wider than 64 bits",
			c.AddressBits)
	}

	for _, bits := range []uint64{
		c.Log2LineSize + c.L1Log2NumSets,
		c.Log2LineSize + c.L2Log2NumSets,
	} {
		if bits >= c.AddressBits {
			return errors.Errorf("%d address bits leave no tag bits",
				c.AddressBits)
		}
	}

	if c.L1NumWays < 1 || c.L2NumWays < 1 {
		return errors.New("caches need at least one way")
	}

	if c.SnoopLatency < 0 || c.MemLatency < 0 {
		return errors.New("latencies cannot be negative")
	}

	if c.MemCapacity < c.LineSize() || c.MemCapacity%c.LineSize() != 0 {
		return errors.Errorf("memory capacity %d is not a multiple of "+
			"the line size", c.MemCapacity)
	}

	if c.PortBufferSize < 1 {
		return errors.New("port buffers need at least one slot")
	}

	return nil
}

// LoadConfig starts from DefaultConfig, loads the given .env files into the
// environment and applies the MSISIM_* variables. Variables already set in
// the environment take precedence over the files.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, errors.Wrap(err, "failed to load env files")
		}
	}

	c := DefaultConfig()

	freqMHz := uint64(c.Freq / sim.MHz)

	vars := []struct {
		name string
		u64  *uint64
		i    *int
	}{
		{name: "FREQ_MHZ", u64: &freqMHz},
		{name: "ADDRESS_BITS", u64: &c.AddressBits},
		{name: "LOG2_LINE_SIZE", u64: &c.Log2LineSize},
		{name: "L1_LOG2_NUM_SETS", u64: &c.L1Log2NumSets},
		{name: "L1_NUM_WAYS", i: &c.L1NumWays},
		{name: "L2_LOG2_NUM_SETS", u64: &c.L2Log2NumSets},
		{name: "L2_NUM_WAYS", i: &c.L2NumWays},
		{name: "SNOOP_LATENCY", i: &c.SnoopLatency},
		{name: "MEM_LATENCY", i: &c.MemLatency},
		{name: "MEM_CAPACITY", u64: &c.MemCapacity},
		{name: "PORT_BUFFER_SIZE", i: &c.PortBufferSize},
		{name: "MAX_CYCLES", u64: &c.MaxCycles},
	}

	for _, v := range vars {
		str, ok := os.LookupEnv(EnvPrefix + v.name)
		if !ok || str == "" {
			continue
		}

		var err error
		if v.u64 != nil {
			*v.u64, err = strconv.ParseUint(str, 0, 64)
		} else {
			*v.i, err = strconv.Atoi(str)
		}

		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid %s%s", EnvPrefix, v.name)
		}
	}

	c.Freq = sim.Freq(freqMHz) * sim.MHz

	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}
