package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hdtree/hdtree/build"
	"github.com/hdtree/hdtree/hdkey"
	"github.com/hdtree/hdtree/seed"
	"github.com/hdtree/hdtree/signal"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

func main() {
	// Load the configuration, and parse any command line options.
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Styling escape codes are only useful on a terminal.
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.Log.Console.Style = false
	}

	// Call the "real" main in a nested manner so the defers will properly
	// be executed.
	if err := hdtreeMain(cfg, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// hdtreeMain sets up logging and signal handling, then runs the derivation
// requested by cfg.
func hdtreeMain(cfg *config, out, logOut io.Writer) error {
	logRotator := build.NewRotatingLogWriter()
	if !cfg.Log.File.Disable {
		err := logRotator.InitLogRotator(cfg.Log.File, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("unable to initialize log rotator: %w",
				err)
		}
	}
	defer logRotator.Close()

	logMgr := build.NewSubLoggerManager(
		build.NewDefaultLogHandler(cfg.Log, logOut, logRotator),
	)
	setupLoggers(logMgr)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		_, err := fmt.Fprintln(out, "Supported subsystems",
			logMgr.SupportedSubsystems())

		return err
	}

	err := build.ParseAndSetDebugLevels(cfg.DebugLevel, logMgr)
	if err != nil {
		return err
	}

	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}
	defer func() {
		interceptor.RequestShutdown()
		<-interceptor.ShutdownChannel()
	}()

	ctx, cancel := interceptor.Context(context.Background())
	defer cancel()

	return run(ctx, cfg, out)
}

// run performs the work of a single invocation and writes the result to out.
func run(ctx context.Context, cfg *config, out io.Writer) error {
	if cfg.GenSeed {
		return printNewSeed(ctx, seed.CryptoSource, out)
	}

	s, err := seed.New(cfg.seedBytes)
	if err != nil {
		return err
	}
	defer s.Destroy()

	master, err := hdkey.NewMaster(s, cfg.curve)
	if err != nil {
		return err
	}
	defer master.Zero()

	parent, err := hdkey.DerivePath(master, cfg.parentPath)
	if err != nil {
		return err
	}
	defer parent.Zero()

	hdtrLog.Infof("Derived parent %v at depth %d", cfg.parentPath,
		parent.Depth())

	parentRow, err := newKeyRow(cfg.parentPath, parent, cfg.Private)
	if err != nil {
		return err
	}
	rows := []keyRow{parentRow}
	defer func() {
		for i := range rows {
			rows[i].wipe()
		}
	}()

	indices := cfg.childIndices()
	results := hdkey.DeriveChildren(ctx, parent, indices, cfg.Workers)

	var skipped int
	for i, res := range results {
		childPath := cfg.parentPath.Child(indices[i])

		child, err := res.Unpack()
		switch {
		case errors.Is(err, hdkey.ErrInvalidChild):
			hdtrLog.Warnf("Skipping %v: %v", childPath, err)
			skipped++

			continue

		case err != nil:
			return fmt.Errorf("unable to derive %v: %w", childPath,
				err)
		}

		row, err := newKeyRow(childPath, child, cfg.Private)
		child.Zero()
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if len(indices) > 0 {
		hdtrLog.Infof("Derived %d children of %v, %d skipped",
			len(indices)-skipped, cfg.parentPath, skipped)
	}

	return writeRows(out, cfg.Format, rows)
}

// printNewSeed draws a new seed from src and writes it to out as hex.
func printNewSeed(ctx context.Context, src seed.Source, out io.Writer) error {
	s, err := src.Seed(ctx)
	if err != nil {
		return err
	}

	return s.Use(func(secret []byte) error {
		_, err := fmt.Fprintln(out, hex.EncodeToString(secret))
		return err
	})
}
