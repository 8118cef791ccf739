package common

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// AdaptiveAlgorithm selects which Controller policy a new Domain is built
// with. STATIC is the default, matching the original's GetAlgorithm().
type AdaptiveAlgorithm int

const (
	AlgoStatic AdaptiveAlgorithm = iota
	AlgoTCP
	AlgoDCQCN
)

func (a AdaptiveAlgorithm) String() string {
	switch a {
	case AlgoTCP:
		return "tcp"
	case AlgoDCQCN:
		return "dcqcn"
	default:
		return "static"
	}
}

// Config is the immutable, process-wide configuration snapshot parsed from
// the AMPCCL_* environment variables of spec.md §6. A Config is never
// mutated after LoadConfig returns it; GCO.Put swaps in a new one wholesale,
// the same pattern aistore uses for cmn.GCO so hot-path readers never take a
// lock.
type Config struct {
	Enabled     bool
	Algo        AdaptiveAlgorithm
	PCIeEnabled bool
	MinMsgSize  uint64
	MinChunkSize uint64
	LogLevel    int
	Debug       bool

	// Go-native additions, see SPEC_FULL.md §2.3.
	ShmSweepInterval time.Duration
	PersistParams    bool
	PersistPath      string
}

func defaultConfig() *Config {
	return &Config{
		Enabled:          false,
		Algo:             AlgoStatic,
		PCIeEnabled:      true,
		MinMsgSize:       8192,
		MinChunkSize:     4096,
		LogLevel:         0,
		Debug:            false,
		ShmSweepInterval: 0,
		PersistParams:    false,
		PersistPath:      "/var/tmp/ampccl-params.db",
	}
}

// LoadConfig parses the environment into a Config. It never returns an
// error for a missing variable — every field has the documented default —
// but malformed numeric values are reported so the caller can log and fall
// back, rather than silently misconfiguring the split thresholds.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if v, ok := os.LookupEnv("AMPCCL_ENABLE"); ok {
		cfg.Enabled = isTruthy(v)
	}

	if v, ok := os.LookupEnv("AMPCCL_ALGO"); ok {
		switch strings.ToLower(v) {
		case "tcp":
			cfg.Algo = AlgoTCP
		case "dcqcn":
			cfg.Algo = AlgoDCQCN
		case "static":
			cfg.Algo = AlgoStatic
		default:
			cfg.Algo = AlgoStatic
		}
	}

	if v, ok := os.LookupEnv("AMPCCL_ENABLE_PCIE"); ok {
		cfg.PCIeEnabled = v != "0"
	}

	if v, ok := os.LookupEnv("AMPCCL_MIN_MSG_SIZE"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "AMPCCL_MIN_MSG_SIZE")
		}
		cfg.MinMsgSize = n
	}

	if v, ok := os.LookupEnv("AMPCCL_MIN_CHUNK_SIZE"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "AMPCCL_MIN_CHUNK_SIZE")
		}
		cfg.MinChunkSize = n
	}

	if v, ok := os.LookupEnv("AMPCCL_LOG_LEVEL"); ok {
		cfg.LogLevel = parseLogLevel(v)
	}

	if v, ok := os.LookupEnv("AMPCCL_DEBUG"); ok {
		cfg.Debug = isTruthy(v) || v != "0"
	}

	if v, ok := os.LookupEnv("AMPCCL_SHM_SWEEP_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "AMPCCL_SHM_SWEEP_INTERVAL")
		}
		cfg.ShmSweepInterval = d
	}

	if v, ok := os.LookupEnv("AMPCCL_PERSIST_PARAMS"); ok {
		cfg.PersistParams = isTruthy(v)
	}

	if v, ok := os.LookupEnv("AMPCCL_PERSIST_PATH"); ok && v != "" {
		cfg.PersistPath = v
	}

	return cfg, nil
}

func isTruthy(v string) bool {
	switch v {
	case "1", "on", "ON", "true", "TRUE", "yes", "YES":
		return true
	default:
		return false
	}
}

func parseLogLevel(v string) int {
	switch strings.ToLower(v) {
	case "off", "0":
		return 0
	case "error", "1":
		return 1
	case "warn", "2":
		return 2
	case "info", "3":
		return 3
	case "debug", "4":
		return 4
	default:
		return 0
	}
}

// globalConfigOwner is the lock-free holder of the live Config, in the
// style of aistore's cmn.GCO: readers on the collective hot path call Get()
// and never block; a config reload (or first initialization) calls Put()
// to swap the whole snapshot atomically.
type globalConfigOwner struct {
	ptr atomic.Pointer[Config]
}

// GCO is the process-wide configuration owner. It is initialized lazily on
// first Get() with the environment snapshot at that time, matching the
// original's lazy-static GetLogLevelRef()/IsAdaptiveEnabled() pattern.
var GCO = &globalConfigOwner{}

// Get returns the current Config, loading it from the environment on first
// use. A load failure (malformed numeric env var) falls back to defaults
// rather than panicking — consistent with the library's best-effort
// passthrough posture.
func (g *globalConfigOwner) Get() *Config {
	if c := g.ptr.Load(); c != nil {
		return c
	}
	cfg, err := LoadConfig()
	if err != nil {
		cfg = defaultConfig()
	}
	g.ptr.CompareAndSwap(nil, cfg)
	return g.ptr.Load()
}

// Put installs cfg as the new live configuration.
func (g *globalConfigOwner) Put(cfg *Config) {
	g.ptr.Store(cfg)
}
