package main

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/hdtree/hdtree/build"
	"github.com/hdtree/hdtree/hdkey"
	"github.com/hdtree/hdtree/keychain"
	"github.com/hdtree/hdtree/seed"
	"github.com/hdtree/hdtree/signal"
)

// Subsystem defines the logging code for the binary itself.
const Subsystem = "HDTR"

// hdtrLog is the logger of the binary. It stays disabled until setupLoggers
// has run.
var hdtrLog = btclog.Disabled

// setupLoggers initializes all package-global logger variables.
func setupLoggers(root *build.SubLoggerManager) {
	hdtrLog = addSubLogger(root, Subsystem)

	addSubLogger(root, hdkey.Subsystem, hdkey.UseLogger)
	addSubLogger(root, keychain.Subsystem, keychain.UseLogger)
	addSubLogger(root, seed.Subsystem, seed.UseLogger)
	addSubLogger(root, signal.Subsystem, signal.UseLogger)
}

// addSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func addSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) btclog.Logger {

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	root.RegisterSubLogger(subsystem, logger)

	for _, useLogger := range useLoggers {
		useLogger(logger)
	}

	return logger
}
