package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

func newTestManager(buf *bytes.Buffer) *SubLoggerManager {
	handler := btclog.NewDefaultHandler(buf, btclog.WithNoTimestamp())
	manager := NewSubLoggerManager(handler)

	for _, subsystem := range []string{"HDKY", "KCHN", "SEED"} {
		manager.RegisterSubLogger(
			subsystem, manager.GenSubLogger(subsystem),
		)
	}

	return manager
}

// TestParseAndSetDebugLevels covers the global and per subsystem forms of
// the debug level string.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		want    map[string]btclogv1.Level
		wantErr bool
	}{
		{
			name:  "global",
			level: "debug",
			want: map[string]btclogv1.Level{
				"HDKY": btclogv1.LevelDebug,
				"KCHN": btclogv1.LevelDebug,
				"SEED": btclogv1.LevelDebug,
			},
		},
		{
			name:  "global and subsystem",
			level: "warn,HDKY=trace,SEED=off",
			want: map[string]btclogv1.Level{
				"HDKY": btclogv1.LevelTrace,
				"KCHN": btclogv1.LevelWarn,
				"SEED": btclogv1.LevelOff,
			},
		},
		{
			name:  "subsystem only",
			level: "KCHN=error",
			want: map[string]btclogv1.Level{
				"KCHN": btclogv1.LevelError,
			},
		},
		{
			name:    "invalid global",
			level:   "loud",
			wantErr: true,
		},
		{
			name:    "unknown subsystem",
			level:   "info,NOPE=debug",
			wantErr: true,
		},
		{
			name:    "invalid subsystem level",
			level:   "HDKY=loud",
			wantErr: true,
		},
		{
			name:    "missing pair",
			level:   "info,HDKY",
			wantErr: true,
		},
		{
			name:    "double assignment",
			level:   "HDKY=info=debug",
			wantErr: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			manager := newTestManager(&bytes.Buffer{})
			err := ParseAndSetDebugLevels(test.level, manager)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			loggers := manager.SubLoggers()
			for subsystem, level := range test.want {
				require.Equal(
					t, level, loggers[subsystem].Level(),
					subsystem,
				)
			}
		})
	}
}

// TestSubLoggerManager asserts loggers write through the shared handler and
// are listed in order.
func TestSubLoggerManager(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	manager := newTestManager(&buf)

	require.Equal(
		t, []string{"HDKY", "KCHN", "SEED"},
		manager.SupportedSubsystems(),
	)

	manager.SetLogLevels("info")
	manager.SubLoggers()["HDKY"].Infof("derived %d keys", 3)
	manager.SubLoggers()["SEED"].Debugf("should not show")

	require.Contains(t, buf.String(), "HDKY")
	require.Contains(t, buf.String(), "derived 3 keys")
	require.NotContains(t, buf.String(), "should not show")

	// Unknown subsystems are ignored.
	manager.SetLogLevel("NOPE", "trace")
	require.NotContains(t, manager.SubLoggers(), "NOPE")
}

// TestLogConfigValidate covers the config checks.
func TestLogConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultLogConfig().Validate())

	cfg := DefaultLogConfig()
	cfg.File.Compressor = "lzma"
	require.Error(t, cfg.Validate())

	cfg = DefaultLogConfig()
	cfg.Console.CallSite = "everywhere"
	require.Error(t, cfg.Validate())

	cfg = DefaultLogConfig()
	cfg.File.MaxLogFileSize = 0
	require.Error(t, cfg.Validate())
}

// TestDefaultLogHandler asserts output is routed to the enabled writers.
func TestDefaultLogHandler(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "logs", "hdtree.log")

	cfg := DefaultLogConfig()
	cfg.File.Disable = false
	cfg.File.Compressor = Zstd

	rotator := NewRotatingLogWriter()
	require.NoError(t, rotator.InitLogRotator(cfg.File, logFile))

	var console bytes.Buffer
	handler := NewDefaultLogHandler(cfg, &console, rotator)

	logger := btclog.NewSLogger(handler.SubSystem("HDTR"))
	logger.SetLevel(btclogv1.LevelInfo)
	logger.Infof("hello from the handler")

	require.NoError(t, rotator.Close())

	require.Contains(t, console.String(), "hello from the handler")

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(contents), "hello from the handler")

	// With both loggers disabled nothing is written anywhere.
	cfg.Console.Disable = true
	cfg.File.Disable = true
	console.Reset()

	logger = btclog.NewSLogger(
		NewDefaultLogHandler(cfg, &console, nil).SubSystem("HDTR"),
	)
	logger.Infof("dropped")
	require.Empty(t, console.String())
}

// TestConsoleStyle asserts level tags are only wrapped in escape codes when
// styling is on.
func TestConsoleStyle(t *testing.T) {
	t.Parallel()

	logLine := func(style bool) string {
		cfg := DefaultLogConfig()
		cfg.Console.NoTimestamps = true
		cfg.Console.Style = style

		var console bytes.Buffer
		handler := NewDefaultLogHandler(cfg, &console, nil)

		logger := btclog.NewSLogger(handler.SubSystem("HDTR"))
		logger.SetLevel(btclogv1.LevelInfo)
		logger.InfoS(context.Background(), "styled", "index", 7)

		return console.String()
	}

	plain := logLine(false)
	require.Contains(t, plain, "styled")
	require.NotContains(t, plain, csi)

	styled := logLine(true)
	require.Contains(t, styled, "styled")
	require.Contains(t, styled, csi+greenSeq+"m")
}

func TestStyleString(t *testing.T) {
	require.Equal(t, "plain", styleString("plain"))
	require.Equal(t, "\x1b[1;35mtag\x1b[0m",
		styleString("tag", boldSeq, magentaSeq))
}

// TestRotatorRejectsUnknownCompressor asserts the rotator is not created
// with an unsupported compressor.
func TestRotatorRejectsUnknownCompressor(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig().File
	cfg.Compressor = "lzma"

	rotator := NewRotatingLogWriter()
	err := rotator.InitLogRotator(
		cfg, filepath.Join(t.TempDir(), "hdtree.log"),
	)
	require.Error(t, err)

	// An uninitialised rotator swallows writes.
	n, err := rotator.Write([]byte("ignored"))
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, rotator.Close())
}

// TestLogClosure asserts the closure is only evaluated when formatted.
func TestLogClosure(t *testing.T) {
	t.Parallel()

	calls := 0
	closure := NewLogClosure(func() string {
		calls++
		return "expensive"
	})

	var buf bytes.Buffer
	handler := btclog.NewDefaultHandler(&buf, btclog.WithNoTimestamp())
	logger := btclog.NewSLogger(handler.SubSystem("TEST"))
	logger.SetLevel(btclogv1.LevelInfo)

	logger.Debugf("value: %v", closure)
	require.Zero(t, calls)

	logger.Infof("value: %v", closure)
	require.Equal(t, 1, calls)
	require.Contains(t, buf.String(), "value: expensive")

	require.Equal(t, "pub", LogPubKey("pub", []byte{0x02, 0x01}).Key)
}

func TestLogTypeString(t *testing.T) {
	require.Equal(t, "none", LogTypeNone.String())
	require.Equal(t, "stdout", LogTypeStdOut.String())
	require.Equal(t, "default", LogTypeDefault.String())
	require.Equal(t, "unknown", LogType(9).String())

	require.Equal(t, btclog.Disabled, NewSubLogger("TEST", nil))
}
