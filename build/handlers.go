package build

import (
	"io"

	"github.com/btcsuite/btclog/v2"
)

// NewDefaultLogHandler returns the handler every sub logger of the binary
// writes through. Output goes to console and to the rotating log writer
// unless the respective logger is disabled. Line formatting follows the
// console config when the console is enabled and the file config otherwise.
func NewDefaultLogHandler(cfg *LogConfig, console io.Writer,
	rotator *RotatingLogWriter) btclog.Handler {

	var (
		writers []io.Writer
		opts    []btclog.HandlerOption
	)

	if !cfg.File.Disable && rotator != nil {
		writers = append(writers, rotator)
		opts = cfg.File.HandlerOptions()
	}

	if !cfg.Console.Disable {
		writers = append(writers, console)

		// Styling escape codes only belong on a terminal.
		if len(writers) == 1 {
			opts = cfg.Console.HandlerOptions()
		} else {
			opts = cfg.Console.LoggerConfig.HandlerOptions()
		}
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	return btclog.NewDefaultHandler(w, opts...)
}
