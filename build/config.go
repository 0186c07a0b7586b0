package build

import (
	"fmt"
	"strings"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
)

const (
	callSiteOff   = "off"
	callSiteShort = "short"
	callSiteLong  = "long"

	defaultLogCompressor = Gzip

	// DefaultMaxLogFiles is the default maximum number of log files to
	// keep.
	DefaultMaxLogFiles = 3

	// DefaultMaxLogFileSize is the default maximum log file size in MB.
	DefaultMaxLogFileSize = 10
)

// SGR parameters used to style console output.
const (
	csi = "\x1b["

	resetSeq   = "0"
	boldSeq    = "1"
	faintSeq   = "2"
	redSeq     = "31"
	greenSeq   = "32"
	yellowSeq  = "33"
	blueSeq    = "34"
	magentaSeq = "35"
)

// levelStyles maps each log level to the SGR parameters of its tag.
var levelStyles = map[btclogv1.Level][]string{
	btclogv1.LevelTrace:    {faintSeq},
	btclogv1.LevelDebug:    {blueSeq},
	btclogv1.LevelInfo:     {greenSeq},
	btclogv1.LevelWarn:     {yellowSeq},
	btclogv1.LevelError:    {redSeq},
	btclogv1.LevelCritical: {boldSeq, magentaSeq},
}

// styleString wraps s in the given SGR parameters and resets the style
// afterwards.
func styleString(s string, params ...string) string {
	if len(params) == 0 {
		return s
	}

	return csi + strings.Join(params, ";") + "m" + s + csi + resetSeq +
		"m"
}

// LogConfig holds logging configuration options.
//
//nolint:lll
type LogConfig struct {
	Console *ConsoleLoggerConfig `group:"console" namespace:"console" description:"The logger writing to stdout."`
	File    *FileLoggerConfig    `group:"file" namespace:"file" description:"The logger writing to the log file."`
}

// Validate validates the LogConfig struct values.
func (c *LogConfig) Validate() error {
	if !SupportedLogCompressor(c.File.Compressor) {
		return fmt.Errorf("invalid log compressor: %v",
			c.File.Compressor)
	}

	for _, callSite := range []string{
		c.Console.CallSite, c.File.CallSite,
	} {
		switch callSite {
		case callSiteOff, callSiteShort, callSiteLong:
		default:
			return fmt.Errorf("invalid call-site option: %v",
				callSite)
		}
	}

	if c.File.MaxLogFiles < 0 || c.File.MaxLogFileSize <= 0 {
		return fmt.Errorf("invalid log file limits: max-files=%d, "+
			"max-file-size=%d", c.File.MaxLogFiles,
			c.File.MaxLogFileSize)
	}

	return nil
}

// LoggerConfig holds options for a particular logger.
//
//nolint:lll
type LoggerConfig struct {
	Disable      bool   `long:"disable" description:"Disable this logger."`
	NoTimestamps bool   `long:"no-timestamps" description:"Omit timestamps from log lines."`
	CallSite     string `long:"call-site" description:"Include the call-site of each log line." choice:"off" choice:"short" choice:"long"`
}

// ConsoleLoggerConfig extends LoggerConfig with options that only make sense
// on a terminal.
//
//nolint:lll
type ConsoleLoggerConfig struct {
	LoggerConfig
	Style bool `long:"style" description:"If set, the output will be styled with color and fonts"`
}

// FileLoggerConfig extends LoggerConfig with specific log file options.
//
//nolint:lll
type FileLoggerConfig struct {
	LoggerConfig
	Compressor     string `long:"compressor" description:"Compression algorithm to use when rotating logs." choice:"gzip" choice:"zstd"`
	MaxLogFiles    int    `long:"max-files" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"max-file-size" description:"Maximum logfile size in MB"`
}

// DefaultLogConfig returns the default logging config options. The file
// logger starts out disabled since most invocations are one-off.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Console: &ConsoleLoggerConfig{
			LoggerConfig: LoggerConfig{
				CallSite: callSiteOff,
			},
		},
		File: &FileLoggerConfig{
			Compressor:     defaultLogCompressor,
			MaxLogFiles:    DefaultMaxLogFiles,
			MaxLogFileSize: DefaultMaxLogFileSize,
			LoggerConfig: LoggerConfig{
				Disable:  true,
				CallSite: callSiteOff,
			},
		},
	}
}

// HandlerOptions returns the set of btclog.HandlerOptions that the state of the
// config struct translates to.
func (cfg *LoggerConfig) HandlerOptions() []btclog.HandlerOption {
	var opts []btclog.HandlerOption
	if cfg.NoTimestamps {
		opts = append(opts, btclog.WithNoTimestamp())
	}

	switch cfg.CallSite {
	case callSiteShort:
		opts = append(opts, btclog.WithCallerFlags(btclog.Lshortfile))
	case callSiteLong:
		opts = append(opts, btclog.WithCallerFlags(btclog.Llongfile))
	}

	return opts
}

// HandlerOptions returns the console handler options, including styling.
func (cfg *ConsoleLoggerConfig) HandlerOptions() []btclog.HandlerOption {
	opts := cfg.LoggerConfig.HandlerOptions()
	if !cfg.Style {
		return opts
	}

	return append(opts,
		btclog.WithStyledLevel(func(l btclogv1.Level) string {
			return styleString(
				fmt.Sprintf("[%s]", l), levelStyles[l]...,
			)
		}),
		btclog.WithStyledCallSite(func(file string, line int) string {
			return styleString(
				fmt.Sprintf("%s:%d", file, line), faintSeq,
			)
		}),
		btclog.WithStyledKeys(func(key string) string {
			return styleString(key, boldSeq)
		}),
	)
}
