package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rolfl/hmicore/driver"
	"github.com/rolfl/hmicore/guarded"
)

type RunCommand struct {
	Stats time.Duration `long:"stats" description:"Cycle time log interval, overrides updater.stats (0 disables)"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg, m, log, err := open()
	if err != nil {
		return err
	}
	defer m.Close()

	stats := cfg.Updater.Stats
	if c.Stats != 0 {
		stats = c.Stats
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, exit := guarded.New(false)
	g, ctx := errgroup.WithContext(ctx)

	var threads []*driver.UpdaterThread
	for _, h := range m.ProcessUpdaters() {
		th := driver.NewUpdaterThread(h.Updater, cfg.Updater.Period, exit.ReadOnlyCopy(), log)
		threads = append(threads, th)
		g.Go(func() error { return th.Run(ctx) })
	}

	g.Go(func() error {
		var tick <-chan time.Time
		if stats > 0 {
			ticker := time.NewTicker(stats)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ctx.Done():
				// updaters blocked in I/O see the flag after their cycle
				return exit.SetData(true)
			case <-tick:
				for _, th := range threads {
					d := th.CycleTime().GetData()
					log.Info("cycle time",
						"connection_id", th.ConnectionID(),
						"state", th.State().String(),
						"cycle_time", d.Current,
						"min", d.Min,
						"max", d.Max,
					)
				}
			}
		}
	})

	log.Info("hmicore running", "connections", len(threads), "period", cfg.Updater.Period)
	err = g.Wait()
	log.Info("hmicore stopped")
	return err
}
