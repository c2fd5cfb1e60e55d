package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/gamesys/internal/config"
	"github.com/l1jgo/gamesys/internal/core/event"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/data"
	"github.com/l1jgo/gamesys/internal/executor"
	"github.com/l1jgo/gamesys/internal/persist"
	"github.com/l1jgo/gamesys/internal/scripting"
	"github.com/l1jgo/gamesys/internal/system"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m               tickd  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        system update scheduler host       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Optional journal database
	var journal *persist.Journal
	if cfg.Database.DSN != "" {
		printSection("database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		err = db.RunMigrations(dbCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("journal schema migrated")
		journal = persist.NewJournal(persist.NewJournalRepo(db))
		fmt.Println()
	}

	// 4. Scripts outlive the world: script systems call into Lua on dispose.
	var (
		manifest *data.Manifest
		lua      *scripting.Engine
	)
	if cfg.Manifest.Path != "" {
		if manifest, err = data.LoadManifest(cfg.Manifest.Path); err != nil {
			return err
		}
		if lua, err = scripting.NewEngine(cfg.Manifest.ScriptsDir, log); err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer lua.Close()
	}

	// 5. Executor and world
	workers := cfg.Scheduler.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	exec := executor.New(ctx, workers, log)
	defer exec.Close()

	world, roots, err := coresys.NewDefaultWorld(
		coresys.WithLogger(log),
		coresys.WithEventBus(event.NewBus()),
		coresys.WithContext(ctx),
		coresys.WithFailureLogInterval(cfg.Scheduler.FailureLogInterval),
	)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	defer func() {
		if err := world.Dispose(); err != nil {
			log.Error("world dispose", zap.Error(err))
		}
	}()

	sim := system.NewSim(cfg.Simulation, exec)
	systems := system.Builtin(sim, journal, cfg.Database.JournalFlushTicks)

	// 6. Manifest systems
	printSection("schedule")
	if manifest != nil {
		scripted, err := system.BuildManifest(world, manifest, lua, sim.Board)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		systems = append(systems, scripted...)
		printStat("manifest groups", len(manifest.Groups))
		printStat("script systems", len(manifest.Systems))
	}
	if err := roots.RegisterSystems(systems...); err != nil {
		return fmt.Errorf("register systems: %w", err)
	}
	printStat("systems", len(world.Systems()))
	printStat("workers", workers)
	fmt.Println()
	log.Debug("schedule\n" + world.Dump())

	// 7. Start loop
	ticker := time.NewTicker(cfg.Scheduler.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("tick %s, fixed step %s", cfg.Scheduler.TickRate, cfg.Scheduler.FixedStep))
	fmt.Println()

	clock := newFixedClock(cfg.Scheduler.FixedStep, cfg.Scheduler.MaxFixedSteps)
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			steps, dropped := clock.advance(dt)
			if dropped > 0 {
				log.Warn("frame over budget, fixed steps dropped",
					zap.Duration("dt", dt),
					zap.Duration("dropped", dropped),
				)
			}
			if err := roots.Frame(dt, clock.step, steps); err != nil {
				log.Error("frame failed", zap.Uint64("frame", world.Time().Frame), zap.Error(err))
			}
		case <-ctx.Done():
			log.Info("shutdown signal received")
			// Let in-flight jobs land before the world is disposed.
			err := multierr.Append(world.Tracker().CompleteAll(context.Background()), exec.Wait())
			if err != nil {
				log.Warn("jobs failed during shutdown", zap.Error(err))
			}
			log.Info("scheduler stopped",
				zap.Uint64("frames", world.Time().Frame),
				zap.Duration("elapsed", world.Time().Elapsed),
			)
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
