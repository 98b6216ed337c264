package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"evacgrid.dev/internal/persistence/evlog"
	"evacgrid.dev/internal/persistence/indexdb"
	"evacgrid.dev/internal/protocol"
	"evacgrid.dev/internal/sim/config"
	"evacgrid.dev/internal/sim/evac"
	"evacgrid.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address (empty to disable the observer server)")
		configPath = flag.String("config", "", "path to evac.yaml (default: built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")

		width  = flag.Int("width", 0, "grid width override")
		height = flag.Int("height", 0, "grid height override")
		agents = flag.Int("agents", 0, "agent count override")
		doors  = flag.Int("doors", 0, "door count override")
		delay  = flag.Int("delay", 0, "pre-evacuation delay override (seconds)")
		seed   = flag.Int64("seed", 0, "rng seed override (0 = time-based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("%s: load config: %v", protocol.ErrConfig, err)
	}
	applyOverrides(&cfg, *width, *height, *agents, *doors, *delay, *seed)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("%s: %v", protocol.ErrConfig, err)
	}

	runID := time.Now().UTC().Format("20060102-150405")

	sim, err := evac.New(cfg.Params(), logger)
	if err != nil {
		logger.Fatalf("%s: setup: %v", protocol.ErrConfig, err)
	}

	events, err := evlog.Open(filepath.Join(*dataDir, "events"), runID)
	if err != nil {
		logger.Fatalf("open event log: %v", err)
	}
	defer events.Close()

	var idx *indexdb.RunIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open run index: %v", err)
		}
		defer idx.Close()
	}

	obs := observer.NewServer(sim, runID, logger)

	sim.Notify(func(ev evac.Event) {
		if err := events.Write(ev); err != nil {
			logger.Printf("event log write: %v", err)
		}
		if ev.Kind == "exit" {
			idx.RecordExit(runID, evac.ExitRecord{AgentID: ev.AgentID, DoorID: ev.DoorID}, ev.At)
		}
		obs.Broadcast(ev)
	})

	if strings.TrimSpace(*addr) != "" {
		mux := http.NewServeMux()
		mux.Handle("/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.Handle("/v1/obs", obs.WSHandler())
		srv := &http.Server{Addr: *addr, Handler: mux}
		go func() {
			logger.Printf("observer endpoint on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("http server: %v", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Printf("signal received, finishing run")
		cancel()
	}()

	started := time.Now()
	summary := sim.Run(ctx)

	idx.RecordSummary(runID, started, sim.Params(), summary)
	printSummary(summary)
}

func applyOverrides(cfg *config.Config, width, height, agents, doors, delay int, seed int64) {
	if width > 0 {
		cfg.Width = width
	}
	if height > 0 {
		cfg.Height = height
	}
	if agents > 0 {
		cfg.Agents = agents
	}
	if doors > 0 {
		cfg.Doors = doors
	}
	if delay > 0 {
		cfg.PreEvacDelaySec = delay
	}
	if seed != 0 {
		cfg.Seed = seed
	}
}

func printSummary(sum evac.Summary) {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("SIMULATION FINISHED")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("agents:    %d\n", sum.Agents)
	fmt.Printf("evacuated: %d\n", sum.Evacuated)
	fmt.Printf("stuck:     %d\n", sum.Stuck)
	fmt.Printf("rate:      %.1f%%\n", sum.Rate*100)
	fmt.Println()

	fmt.Println("exits per door:")
	for _, d := range sum.Doors {
		fmt.Printf("  door %d at (%d,%d): %d\n", d.ID, d.Pos.X, d.Pos.Y, d.Exited)
		if len(d.Evacuees) > 0 {
			parts := make([]string, 0, len(d.Evacuees))
			for _, id := range d.Evacuees {
				parts = append(parts, fmt.Sprint(id))
			}
			fmt.Printf("    agents: %s\n", strings.Join(parts, ", "))
		}
	}

	if len(sum.History) > 0 {
		fmt.Println()
		fmt.Println("evacuation order:")
		for _, rec := range sum.History {
			fmt.Printf("  agent %d -> door %d\n", rec.AgentID, rec.DoorID)
		}
	}
}
