package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/rolfl/hmicore/config"
	"github.com/rolfl/hmicore/driver"
)

type CLICommand struct {
	Config  string          `short:"c" long:"config" description:"Configuration file" default:"hmicore.yaml" env:"HMICORE_CONFIG"`
	Verbose bool            `short:"v" long:"verbose" description:"Log at debug level"`
	Run     RunCommand      `command:"run" description:"Run the process data updaters until interrupted"`
	Read    ReadCommand     `command:"read" alias:"get" description:"Read process values"`
	Write   WriteCommand    `command:"write" alias:"set" description:"Write a process value"`
	Diag    DiagCommand     `command:"diag" alias:"diagnostics" description:"Show Modbus bus diagnostics"`
	Tags    TagsListCommand `command:"tags" description:"List the configured tags"`
}

var clicmd CLICommand

// setup loads the configuration and builds the logger for a command.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(clicmd.Config)
	if err != nil {
		return nil, nil, err
	}
	if clicmd.Verbose {
		cfg.Log.Level = "debug"
	}
	log := cfg.Log.Logger()
	slog.SetDefault(log)
	return cfg, log, nil
}

// open builds the driver manager of the configuration.
func open() (*config.Config, *driver.Manager, *slog.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := driver.NewManager(cfg.Connections, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, m, log, nil
}

func main() {
	parser := flags.NewParser(&clicmd, flags.HelpFlag|flags.PassDoubleDash)

	_, err := parser.Parse()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
