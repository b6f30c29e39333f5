// Command mbsim is a Modbus/TCP device simulator for trying out hmicore
// without a PLC. Input registers and discrete inputs follow a slowly
// changing pattern; coils and holding registers store what clients write.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/rolfl/hmicore/internal/modbus"
)

type Options struct {
	Listen    string        `short:"l" long:"listen" default:":1502" description:"Listen address"`
	Inputs    int           `long:"inputs" default:"64" description:"Number of input registers"`
	Holdings  int           `long:"holdings" default:"64" description:"Number of holding registers"`
	Coils     int           `long:"coils" default:"64" description:"Number of coils"`
	Discretes int           `long:"discretes" default:"64" description:"Number of discrete inputs"`
	Step      time.Duration `long:"step" default:"1s" description:"Input pattern update interval (0 freezes the inputs)"`
	Verbose   bool          `short:"v" long:"verbose" description:"Log every write from clients"`
}

func main() {
	opts := Options{}
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opts, log); err != nil {
		log.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func run(opts Options, log *slog.Logger) error {
	server, err := newSimulator(opts, log)
	if err != nil {
		return fmt.Errorf("unable to initialise simulator tables: %w", err)
	}

	tcpserv, err := modbus.NewTCPServer(opts.Listen, modbus.ServeAllUnits(server), log)
	if err != nil {
		return fmt.Errorf("unable to create TCP listener: %w", err)
	}
	log.Info("simulator listening", "address", tcpserv.Addr().String(),
		"inputs", opts.Inputs, "holdings", opts.Holdings, "coils", opts.Coils, "discretes", opts.Discretes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		tcpserv.Close()
	}()

	if opts.Step > 0 {
		go animate(ctx, server, opts, log)
	}
	tcpserv.WaitClosed()
	log.Info("simulator stopped")
	return nil
}

func newSimulator(opts Options, log *slog.Logger) (modbus.Server, error) {
	server := modbus.NewServer()
	server.RegisterDiscretes(opts.Discretes)
	server.RegisterInputs(opts.Inputs)
	server.RegisterCoils(opts.Coils, func(_ modbus.Server, _ modbus.Atomic, address int, values []bool, current []bool) ([]bool, error) {
		log.Debug("coils written", "address", address, "count", len(values))
		return values, nil
	})
	server.RegisterHoldings(opts.Holdings, func(_ modbus.Server, _ modbus.Atomic, address int, values []int, current []int) ([]int, error) {
		log.Debug("holdings written", "address", address, "values", values)
		return values, nil
	})
	if err := setPattern(server, opts, 0); err != nil {
		return nil, err
	}
	return server, nil
}

// setPattern fills the inputs for step n: register i counts up from i*256
// and discrete i toggles every (i%8)+1 steps.
func setPattern(server modbus.Server, opts Options, n int) error {
	inputs := make([]int, opts.Inputs)
	for i := range inputs {
		inputs[i] = (i*256 + n) & 0xFFFF
	}
	discretes := make([]bool, opts.Discretes)
	for i := range discretes {
		discretes[i] = (n/(i%8+1))%2 == 1
	}

	atomic := server.StartAtomic()
	defer atomic.Complete()
	if err := server.WriteInputs(atomic, 0, inputs); err != nil {
		return err
	}
	return server.WriteDiscretes(atomic, 0, discretes)
}

func animate(ctx context.Context, server modbus.Server, opts Options, log *slog.Logger) {
	ticker := time.NewTicker(opts.Step)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := setPattern(server, opts, n); err != nil {
				log.Warn("unable to update inputs", "error", err)
			}
		}
	}
}
