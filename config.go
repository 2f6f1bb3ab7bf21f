package cachemap

import (
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

const (
	// DefaultMaxSize is primary tier capacity used for negative Config.MaxSize.
	DefaultMaxSize = 500

	// DefaultLoadFactor is used by DefaultConfig.
	DefaultLoadFactor = 0.75

	// SoftDisabled is a Config.SoftSize value to discard evicted entries.
	SoftDisabled = -1

	// SoftUnbounded is a Config.SoftSize value for unlimited overflow tier.
	SoftUnbounded = 0
)

// Config controls cache instance.
type Config struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// Name is cache instance name, used in stats and logging.
	Name string

	// LRU enables recency ordering of primary tier, insertion ordering is used otherwise.
	LRU bool

	// MaxSize is primary tier capacity, negative value means DefaultMaxSize.
	// Zero disables primary retention, all values go to overflow tier; zero is invalid with LRU.
	MaxSize int

	// InitialSize presizes primary and pinned maps together with LoadFactor.
	InitialSize int

	// SoftSize is overflow tier capacity: SoftDisabled (-1) to drop evicted entries,
	// SoftUnbounded (0) for unlimited tier, positive value for a bounded LRU tier.
	// Other negative values mean unlimited tier.
	SoftSize int

	// LoadFactor must be positive, it scales InitialSize into map capacity hint.
	LoadFactor float64

	// ConcurrencyLevel is an advisory hint of expected concurrent writers, it is stored and reported only.
	ConcurrencyLevel int

	// SoftTTL is a delay after which an entry of unlimited overflow tier is reclaimed, default 10m.
	// Expired entries are reclaimed by a background job that runs every SoftTTL or ReclaimJobInterval,
	// whichever is shorter, until Close. Use -1 to keep entries until heap pressure or removal.
	SoftTTL time.Duration

	// HeapInUseSoftLimit sets heap in use threshold when overflow tier entries are reclaimed.
	HeapInUseSoftLimit uint64

	// HeapInUseEvictFraction is a fraction of overflow entries to reclaim (0, 1], default 0.1 (10% of items).
	HeapInUseEvictFraction float64

	// ReclaimJobInterval is delay between two consecutive heap in use checks, default 1m.
	ReclaimJobInterval time.Duration

	// ItemsCountReportInterval is items count metric report interval, default 1m.
	ItemsCountReportInterval time.Duration
}

// DefaultConfig returns configuration of an insertion ordered cache with DefaultMaxSize primary
// capacity and unlimited overflow tier.
func DefaultConfig() Config {
	return Config{
		MaxSize:     DefaultMaxSize,
		InitialSize: DefaultMaxSize,
		SoftSize:    SoftUnbounded,
		LoadFactor:  DefaultLoadFactor,
	}
}

func (c Config) normalize() (Config, error) {
	if c.LoadFactor <= 0 {
		return c, invalidConfig("load factor must be positive", map[string]interface{}{
			"loadFactor": c.LoadFactor,
		})
	}

	if c.MaxSize < 0 {
		c.MaxSize = DefaultMaxSize
	}

	if c.LRU && c.MaxSize == 0 {
		return c, invalidConfig("LRU primary tier max size must be greater than 0", map[string]interface{}{
			"maxSize": c.MaxSize,
		})
	}

	if c.SoftSize < SoftDisabled {
		c.SoftSize = SoftUnbounded
	}

	if c.InitialSize < 0 {
		c.InitialSize = 0
	}

	if c.SoftTTL == 0 {
		c.SoftTTL = 10 * time.Minute
	}

	if c.HeapInUseEvictFraction <= 0 {
		c.HeapInUseEvictFraction = 0.1
	}

	if c.ReclaimJobInterval == 0 {
		c.ReclaimJobInterval = time.Minute
	}

	if c.ItemsCountReportInterval == 0 {
		c.ItemsCountReportInterval = time.Minute
	}

	return c, nil
}

// mapCapacity converts InitialSize into a map size hint.
func (c Config) mapCapacity() int {
	hint := int(float64(c.InitialSize) / c.LoadFactor)

	if c.MaxSize > 0 && hint > c.MaxSize {
		hint = c.MaxSize
	}

	return hint
}
