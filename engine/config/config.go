// Package config loads the tunables that engine/transport, engine/event and
// engine/cache accept at construction time. Grounded on goworld's
// engine/config (a package-level singleton loaded once from a file, with
// defaults filled in first and then overridden field-by-field), adapted from
// go-ini/ini sections to a single gopkg.in/yaml.v3 document (SPEC_FULL.md 2).
//
// The core packages never read this file themselves, and only some of these
// values can be handed to them: a host loads a Config once and passes a
// high-water mark to NewWriteQueue and a Policy built with a tier's budget
// to NewLayer. NewMultiplexedConnection, NewReadBuffer, NewDispatcher and
// NewDiskStore take no Config values; they use the engine/consts defaults.
package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xiaonanln/worldlink/engine/consts"
	"github.com/xiaonanln/worldlink/engine/gwlog"
)

// TransportConfig covers the multiplexed connection's tunables (spec.md 4.1-4.3).
type TransportConfig struct {
	// PipePoolSize is the number of underlying byte-pipes a
	// MultiplexedConnection maintains to one peer.
	PipePoolSize int `yaml:"pipe_pool_size"`
	// WriteQueueHighWaterMark is the queued-bytes threshold above which
	// Send returns WouldBlock.
	WriteQueueHighWaterMark int `yaml:"write_queue_high_water_mark"`
	// ReadScratchSize is the size of a ReadBuffer's fixed scratch region.
	ReadScratchSize int `yaml:"read_scratch_size"`
	// ReadLowWaterMark is the trailing-bytes threshold below which a
	// ReadBuffer shifts data instead of switching to large-chunk mode.
	ReadLowWaterMark int `yaml:"read_low_water_mark"`
}

// EventConfig covers the dispatcher's tunables (spec.md 4.4).
type EventConfig struct {
	// ProcessBudgetMs is the default time budget of one Process() call, in
	// milliseconds, for a host to turn into a deadline. Dispatcher.Process
	// does not read it: a zero deadline drains the whole queue.
	ProcessBudgetMs int `yaml:"process_budget_ms"`
}

// CacheTierConfig is one entry of Cache.Tiers, naming a tier and its budget.
type CacheTierConfig struct {
	// Name identifies the tier for logging (e.g. "mem", "disk", "net").
	Name string `yaml:"name"`
	// BudgetBytes is the tier's CachePolicy byte budget.
	BudgetBytes int64 `yaml:"budget_bytes"`
	// Policy selects the eviction policy: "lru" or "lfu".
	Policy string `yaml:"policy"`
}

// CacheConfig covers the layered cache's tunables (spec.md 4.5).
type CacheConfig struct {
	// Tiers lists the chain from fastest/smallest to slowest/largest, the
	// same order NewChain expects its arguments in.
	Tiers []CacheTierConfig `yaml:"tiers"`
	// DiskCompressThresholdBytes is the interval size at or above which the
	// disk tier s2-compresses before storing.
	DiskCompressThresholdBytes int64 `yaml:"disk_compress_threshold_bytes"`
}

// Config is the root of the YAML document a host loads.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Event     EventConfig     `yaml:"event"`
	Cache     CacheConfig     `yaml:"cache"`
}

// Default returns a Config populated with the same defaults as
// engine/consts, so a host that omits a section still gets a runnable
// configuration.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			PipePoolSize:            consts.DEFAULT_PIPE_POOL_SIZE,
			WriteQueueHighWaterMark: consts.WRITE_QUEUE_HIGH_WATER_MARK,
			ReadScratchSize:         consts.READ_SCRATCH_SIZE,
			ReadLowWaterMark:        consts.READ_LOW_WATER_MARK,
		},
		Event: EventConfig{
			ProcessBudgetMs: int(consts.EVENT_DISPATCH_DEFAULT_BUDGET / 1_000_000),
		},
		Cache: CacheConfig{
			Tiers: []CacheTierConfig{
				{Name: "mem", BudgetBytes: 64 * 1024 * 1024, Policy: "lru"},
				{Name: "disk", BudgetBytes: 1024 * 1024 * 1024, Policy: "lru"},
			},
			DiskCompressThresholdBytes: consts.CACHE_DISK_COMPRESS_THRESHOLD,
		},
	}
}

var (
	configLock sync.Mutex
	current    *Config
)

// Load reads path, unmarshals it over top of Default(), validates the
// result, and returns it. It does not touch the package-level singleton --
// call SetCurrent if a process wants Get() to see it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		gwlog.Errorf("config: reading %s: %s", path, err)
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		gwlog.Errorf("config: parsing %s: %s", path, err)
		return nil, err
	}

	if err := validate(cfg); err != nil {
		gwlog.Panicf("config: %s: %s", path, err)
		return nil, err
	}

	return cfg, nil
}

// SetCurrent installs cfg as the process-wide singleton returned by Get.
func SetCurrent(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	current = cfg
}

// Get returns the process-wide singleton installed by SetCurrent. It panics
// if nothing has been installed yet, matching goworld's read_config.go
// contract that Get() is only valid after startup has loaded a config.
func Get() *Config {
	configLock.Lock()
	defer configLock.Unlock()
	if current == nil {
		gwlog.Panicf("config: Get called before SetCurrent")
	}
	return current
}

func validate(cfg *Config) error {
	if cfg.Transport.PipePoolSize <= 0 {
		return errInvalid("transport.pipe_pool_size must be > 0")
	}
	if cfg.Transport.WriteQueueHighWaterMark <= 0 {
		return errInvalid("transport.write_queue_high_water_mark must be > 0")
	}
	if cfg.Transport.ReadScratchSize <= 0 {
		return errInvalid("transport.read_scratch_size must be > 0")
	}
	if cfg.Transport.ReadLowWaterMark < 0 || cfg.Transport.ReadLowWaterMark > cfg.Transport.ReadScratchSize {
		return errInvalid("transport.read_low_water_mark must be within [0, read_scratch_size]")
	}
	if cfg.Event.ProcessBudgetMs <= 0 {
		return errInvalid("event.process_budget_ms must be > 0")
	}
	if len(cfg.Cache.Tiers) == 0 {
		return errInvalid("cache.tiers must name at least one tier")
	}
	for _, tier := range cfg.Cache.Tiers {
		if tier.Name == "" {
			return errInvalid("cache.tiers entries must have a name")
		}
		if tier.BudgetBytes <= 0 {
			return errInvalid("cache.tiers." + tier.Name + ".budget_bytes must be > 0")
		}
		if tier.Policy != "lru" && tier.Policy != "lfu" {
			return errInvalid("cache.tiers." + tier.Name + ".policy must be \"lru\" or \"lfu\"")
		}
	}
	return nil
}

type invalidConfigError string

func (e invalidConfigError) Error() string { return string(e) }

func errInvalid(msg string) error { return invalidConfigError(msg) }
