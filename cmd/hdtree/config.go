package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hdtree/hdtree/build"
	"github.com/hdtree/hdtree/ecc"
	"github.com/hdtree/hdtree/hdkey"
	"github.com/hdtree/hdtree/seed"
	"github.com/jessevdk/go-flags"
)

const (
	defaultPath       = "m"
	defaultCount      = 0
	defaultWorkers    = 4
	defaultDebugLevel = "info"

	// maxCount bounds the number of children a single run derives.
	maxCount = 1 << 16
)

// config defines the configuration options for hdtree.
//
// See loadConfig for further details regarding the configuration loading+
// parsing process.
//
//nolint:lll
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to an ini configuration file"`

	GenSeed bool   `long:"genseed" description:"Print a fresh random 64 byte seed as hex and exit"`
	SeedHex string `long:"seed" description:"Hex encoded 64 byte seed to derive from"`

	Path     string `long:"path" description:"Derivation path of the parent key, e.g. m/44'/0'/0'"`
	Start    uint32 `long:"start" description:"Index of the first child of the parent key to derive"`
	Count    uint32 `long:"count" description:"Number of consecutive children of the parent key to derive"`
	Hardened bool   `long:"hardened" description:"Derive hardened children"`
	Private  bool   `long:"private" description:"Include private keys in the output"`
	Format   string `long:"format" description:"Output format" choice:"line" choice:"table"`
	Curve    string `long:"curve" description:"The curve keys are derived on"`
	Workers  int    `long:"workers" description:"Number of children derived concurrently (0 for no limit)"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogFile    string `long:"logfile" description:"Write logs to this file in addition to stderr"`

	Log *build.LogConfig `group:"log" namespace:"log"`

	// The following fields are set by validateConfig.
	curve      *ecc.Domain
	parentPath hdkey.Path
	seedBytes  []byte
}

// defaultConfig returns all default values for the config.
func defaultConfig() config {
	return config{
		Path:       defaultPath,
		Format:     formatLine,
		Count:      defaultCount,
		Curve:      ecc.Secp256k1.String(),
		Workers:    defaultWorkers,
		DebugLevel: defaultDebugLevel,
		Log:        build.DefaultLogConfig(),
	}
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig(args []string) (*config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := defaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	cfg := preCfg
	if preCfg.ConfigFile != "" {
		configFile := cleanAndExpandPath(preCfg.ConfigFile)
		if err := flags.IniParse(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file "+
				"%v: %w", configFile, err)
		}
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateConfig checks the given configuration to be sane and fills in the
// parsed values used by the derivation run.
func validateConfig(cfg *config) error {
	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	// A log file is opt-in. Without one the file logger stays off.
	if cfg.LogFile != "" {
		cfg.LogFile = cleanAndExpandPath(cfg.LogFile)
		cfg.Log.File.Disable = false
	} else {
		cfg.Log.File.Disable = true
	}

	// Nothing else matters when we only print a fresh seed or list the
	// log subsystems.
	if cfg.GenSeed || cfg.DebugLevel == "show" {
		return nil
	}

	curve, err := ecc.LookupByName(cfg.Curve)
	if err != nil {
		return fmt.Errorf("%w, supported curves: %v", err,
			strings.Join(ecc.SupportedCurves(), ", "))
	}
	cfg.curve = curve

	if cfg.SeedHex == "" {
		return errors.New("a seed must be given with --seed, use " +
			"--genseed to create one")
	}

	cfg.parentPath, err = hdkey.ParsePath(cfg.Path)
	if err != nil {
		return err
	}

	switch {
	case cfg.Count > maxCount:
		return fmt.Errorf("count %d exceeds the maximum of %d",
			cfg.Count, maxCount)

	case cfg.Start >= hdkey.HardenedKeyStart:
		return fmt.Errorf("start index %d must be below %d, use "+
			"--hardened for hardened children", cfg.Start,
			hdkey.HardenedKeyStart)

	case uint64(cfg.Start)+uint64(cfg.Count) > hdkey.HardenedKeyStart:
		return fmt.Errorf("children %d..%d cross the hardened "+
			"boundary", cfg.Start, uint64(cfg.Start)+
			uint64(cfg.Count)-1)

	case cfg.Workers < 0 || cfg.Workers > math.MaxInt16:
		return fmt.Errorf("invalid number of workers: %d", cfg.Workers)
	}

	// The seed is decoded last so no secret bytes are left behind when
	// an earlier check fails.
	return cfg.decodeSeed()
}

// decodeSeed moves the hex seed into seedBytes. The hex string is dropped
// and the decoded bytes are wiped again if they are unusable.
func (cfg *config) decodeSeed() error {
	seedBytes, err := hex.DecodeString(cfg.SeedHex)
	cfg.SeedHex = ""
	if err != nil {
		clear(seedBytes)
		return fmt.Errorf("seed is not valid hex: %w", err)
	}
	if len(seedBytes) != seed.SeedBytes {
		clear(seedBytes)
		return fmt.Errorf("%w: got %d bytes", seed.ErrInvalidSeedLen,
			len(seedBytes))
	}
	cfg.seedBytes = seedBytes

	return nil
}

// childIndices returns the child indices requested by the config.
func (cfg *config) childIndices() []uint32 {
	var offset uint32
	if cfg.Hardened {
		offset = hdkey.HardenedKeyStart
	}

	indices := make([]uint32, 0, cfg.Count)
	for i := uint32(0); i < cfg.Count; i++ {
		indices = append(indices, offset+cfg.Start+i)
	}

	return indices
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
