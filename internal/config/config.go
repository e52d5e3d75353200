// Package config loads replay settings from defaults, an optional YAML file,
// SLOTREPLAY_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"SlotReplay/internal/dump"
	"SlotReplay/internal/logger"
	"SlotReplay/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. SLOTREPLAY_CHAIN_ID.
const EnvPrefix = "SLOTREPLAY"

// Setting keys. Flags use the same names.
const (
	KeyPath                = "path"
	KeyInitialRolls        = "initial-roll-path"
	KeyChainID             = "chain-id"
	KeyThreadCount         = "thread-count"
	KeyBlocks              = "blocks"
	KeyBackup              = "backup"
	KeyUntilSlot           = "until-slot"
	KeyDumpBackend         = "dump-backend"
	KeyDumpEngine          = "dump-engine"
	KeyVerifySignatures    = "verify-signatures"
	KeyStrictDenunciations = "strict-denunciations"
	KeyKeepWorkdir         = "keep-workdir"
	KeyWorkdir             = "workdir"
	KeyDrainTimeout        = "drain-timeout"
	KeyBufferSize          = "buffer-size"
	KeyCostPerByte         = "cost-per-byte"
	KeyDatastoreBaseSize   = "datastore-base-size"
	KeyLogLevel            = "log-level"
	KeyMetricsAddr         = "metrics-addr"
)

// Defaults of the main network.
const (
	DefaultChainID           = 77658377
	DefaultThreadCount       = 32
	DefaultCostPerByte       = 100_000
	DefaultDatastoreBaseSize = 4
	DefaultBufferSize        = 64
	DefaultDrainTimeout      = time.Minute
)

var (
	// ErrMissingSetting is returned when a required setting is empty.
	ErrMissingSetting = errors.New("missing setting")

	// ErrInvalidSetting is returned when a setting has an unusable value.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Config holds the validated settings of a run.
type Config struct {
	// DBPath is the directory holding backup_<period>_<thread> snapshots.
	DBPath string

	// InitialRolls is the initial rolls JSON file.
	InitialRolls string

	ChainID     uint64
	ThreadCount uint8

	// Blocks is the dump archive location.
	Blocks string

	// Backup is the snapshot the replay starts from.
	Backup string

	// UntilSlot is an inclusive replay bound, nil for none.
	UntilSlot *model.Slot

	DumpBackend string
	DumpEngine  string

	VerifySignatures    bool
	StrictDenunciations bool

	// KeepWorkdir leaves the staged working copy on disk.
	KeepWorkdir bool

	// Workdir is the parent of the staged working copy, empty for the system temp dir.
	Workdir string

	DrainTimeout time.Duration
	BufferSize   int

	StorageCosts model.StorageCosts

	LogLevel    slog.Level
	MetricsAddr string
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyChainID, DefaultChainID)
	v.SetDefault(KeyThreadCount, DefaultThreadCount)
	v.SetDefault(KeyDumpBackend, dump.KindFile)
	v.SetDefault(KeyDumpEngine, dump.EnginePebble)
	v.SetDefault(KeyDrainTimeout, DefaultDrainTimeout)
	v.SetDefault(KeyBufferSize, DefaultBufferSize)
	v.SetDefault(KeyCostPerByte, DefaultCostPerByte)
	v.SetDefault(KeyDatastoreBaseSize, DefaultDatastoreBaseSize)
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile merges a YAML config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s:\n%w", path, err)
	}

	logger.Debug("config file loaded", "path", path)

	return nil
}

// Load builds a Config from v and validates the settings shared by all commands.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DBPath:              v.GetString(KeyPath),
		InitialRolls:        v.GetString(KeyInitialRolls),
		ChainID:             v.GetUint64(KeyChainID),
		Blocks:              v.GetString(KeyBlocks),
		Backup:              v.GetString(KeyBackup),
		DumpBackend:         strings.ToLower(v.GetString(KeyDumpBackend)),
		DumpEngine:          strings.ToLower(v.GetString(KeyDumpEngine)),
		VerifySignatures:    v.GetBool(KeyVerifySignatures),
		StrictDenunciations: v.GetBool(KeyStrictDenunciations),
		KeepWorkdir:         v.GetBool(KeyKeepWorkdir),
		Workdir:             v.GetString(KeyWorkdir),
		DrainTimeout:        v.GetDuration(KeyDrainTimeout),
		BufferSize:          v.GetInt(KeyBufferSize),
		MetricsAddr:         v.GetString(KeyMetricsAddr),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSetting, KeyPath)
	}

	if cfg.InitialRolls == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSetting, KeyInitialRolls)
	}

	threads := v.GetUint(KeyThreadCount)
	if threads == 0 || threads > 255 {
		return nil, fmt.Errorf("%w: %s %d", ErrInvalidSetting, KeyThreadCount, threads)
	}
	cfg.ThreadCount = uint8(threads)

	level, err := logger.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, KeyLogLevel, err)
	}
	cfg.LogLevel = level

	cfg.StorageCosts, err = model.NewStorageCosts(
		model.AmountFromRaw(v.GetUint64(KeyCostPerByte)),
		v.GetUint64(KeyDatastoreBaseSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: storage costs: %v", ErrInvalidSetting, err)
	}

	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("%w: %s %d", ErrInvalidSetting, KeyBufferSize, cfg.BufferSize)
	}

	if cfg.DrainTimeout < 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidSetting, KeyDrainTimeout, cfg.DrainTimeout)
	}

	if until := v.GetString(KeyUntilSlot); until != "" {
		slot, err := model.ParseSlot(until)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:\n%w", ErrInvalidSetting, KeyUntilSlot, err)
		}

		if err := slot.Validate(cfg.ThreadCount); err != nil {
			return nil, fmt.Errorf("%w: %s:\n%w", ErrInvalidSetting, KeyUntilSlot, err)
		}

		cfg.UntilSlot = &slot
	}

	return cfg, nil
}

// ValidateReplay checks the settings only the replay command needs.
func (c *Config) ValidateReplay() error {
	if c.Blocks == "" {
		return fmt.Errorf("%w: %s", ErrMissingSetting, KeyBlocks)
	}

	if c.Backup == "" {
		return fmt.Errorf("%w: %s", ErrMissingSetting, KeyBackup)
	}

	switch c.DumpBackend {
	case dump.KindFile:
	case dump.KindKeyed:
		switch c.DumpEngine {
		case dump.EnginePebble, dump.EngineLevelDB, dump.EngineBadger:
		default:
			return fmt.Errorf("%w: %s %q", ErrInvalidSetting, KeyDumpEngine, c.DumpEngine)
		}
	default:
		return fmt.Errorf("%w: %s %q", ErrInvalidSetting, KeyDumpBackend, c.DumpBackend)
	}

	return nil
}
