// Command blelink-sim runs a BLELink registry against simulated
// peripherals and exposes it through an interactive shell.
//
// The simulator exercises the full stack without a radio: discovery,
// connection, channel negotiation, heartbeats, signal quality and
// automatic reconnects all run against in-memory peripherals that answer
// frames like real hardware would.
//
// Usage:
//
//	blelink-sim [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-log-file string   CBOR protocol log path
//
// Examples:
//
//	# Start with defaults
//	blelink-sim
//
//	# Fast heartbeat for watching reconnects
//	blelink-sim -config fast.yaml -log-level debug
//
// Interactive Commands:
//
//	add <id> <name>     - Add a simulated peripheral
//	scan / stopscan     - Control discovery
//	list                - List discovered devices
//	connect <id>        - Connect to a device
//	disconnect <id>     - Disconnect a device
//	send <id> <opcode>  - Send a command and print the result
//	rssi <id> <dbm>     - Set a peripheral's signal strength
//	mute <id> / unmute <id> - Stop or resume answering frames
//	radio on|off        - Flip the simulated radio power
//	status              - Show registry status
//	quit                - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/blelink-protocol/blelink-go/cmd/blelink-sim/interactive"
	"github.com/blelink-protocol/blelink-go/internal/testharness/mock"
	"github.com/blelink-protocol/blelink-go/pkg/config"
	"github.com/blelink-protocol/blelink-go/pkg/log"
	"github.com/blelink-protocol/blelink-go/pkg/registry"
)

func main() {
	var (
		configFile string
		logLevel   string
		logFile    string
	)
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "CBOR protocol log path")
	flag.Parse()

	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q\n", logLevel)
		os.Exit(1)
	}

	tr := mock.NewTransport()
	neg := mock.NewNegotiator(tr)

	sh, err := interactive.New(tr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create shell: %v\n", err)
		os.Exit(1)
	}

	// Route log output through readline so it does not clobber the prompt.
	console := zerolog.New(zerolog.ConsoleWriter{Out: sh.Stdout()}).
		Level(level).
		With().Timestamp().Logger()

	loggers := []log.Logger{log.NewZerologAdapter(console)}
	if cfg.LogFile != "" {
		fl, err := log.NewFileLogger(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer fl.Close()
		loggers = append(loggers, fl)
	}

	opts := cfg.RegistryOptions()
	opts.Logger = log.NewMultiLogger(loggers...)

	reg := registry.New(tr, neg, opts)
	defer reg.Close()
	sh.SetRegistry(reg, cfg.CommandTimeout.Std())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sh.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}
