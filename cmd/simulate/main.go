// Command simulate runs the sparrow scheduler core over the reference
// port/sim.Port, driving a small demo workload under a simulated system
// tick. It exists to exercise the scheduler/IPC core end-to-end outside
// of unit tests, the way original_source's board directories wire the
// portable kernel to a concrete environment — here a host process
// instead of an MCU.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hengyizhao/SKRTOS-sparrow/config"
	"github.com/hengyizhao/SKRTOS-sparrow/ipc"
	"github.com/hengyizhao/SKRTOS-sparrow/port"
	"github.com/hengyizhao/SKRTOS-sparrow/port/sim"
	"github.com/hengyizhao/SKRTOS-sparrow/sched"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file (optional)")
	variant := flag.String("ready", "table", "ready structure variant: table or list")
	runFor := flag.Duration("for", 2*time.Second, "how long to let the simulated tick run")
	dump := flag.Bool("dump", false, "spew.Dump the demo's shared counter before exiting")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Error().Err(err).Msg("loading config")
			os.Exit(1)
		}
		cfg = loaded
	}

	var ready sched.ReadyStructure
	switch *variant {
	case "list":
		ready = sched.NewListReady(cfg.TimeSliceTicks)
	default:
		ready = sched.NewTableReady()
	}

	p := sim.New(port.DefaultFaultHandler)
	s := sched.NewScheduler(p, ready, log, port.DefaultFaultHandler)

	mu := ipc.NewMutex()
	shared := 0

	worker := func(name string, priority int, delayTicks uint32) port.TaskFunc {
		return func(arg any) {
			for {
				mu.Lock(s, sched.WaitForever)
				shared++
				log.Debug().Str("task", name).Int("shared", shared).Msg("critical section")
				mu.Unlock(s)
				s.Delay(delayTicks)
			}
		}
	}

	if _, err := s.Create("worker-low", 1, 128, worker("worker-low", 1, 5), nil); err != nil {
		log.Error().Err(err).Msg("creating worker-low")
		os.Exit(1)
	}
	if _, err := s.Create("worker-high", 2, 128, worker("worker-high", 2, 3), nil); err != nil {
		log.Error().Err(err).Msg("creating worker-high")
		os.Exit(1)
	}

	if err := s.SchedulerInit(cfg.IdleStackWords); err != nil {
		log.Error().Err(err).Msg("scheduler init")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *runFor)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		go s.SchedulerStart() // never returns; run it off the errgroup's own goroutine
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRateHz))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				s.CheckTicks()
			}
		}
	})

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Error().Err(err).Msg("simulation ended with an error")
		os.Exit(1)
	}

	if *dump {
		spew.Dump(map[string]any{"shared": shared})
	}
}
