package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/l1jgo/gamesys/internal/config"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/data"
	"github.com/l1jgo/gamesys/internal/executor"
	"github.com/l1jgo/gamesys/internal/scripting"
	"github.com/l1jgo/gamesys/internal/system"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type report struct {
	Systems  int
	Warnings int
	Cycles   []*coresys.CycleError
	Errors   []error // registration failures other than cycles
	Tree     string
}

func (r *report) ok(strict bool) bool {
	if len(r.Cycles) > 0 || len(r.Errors) > 0 {
		return false
	}
	return !strict || r.Warnings == 0
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "systems:  %d\n", r.Systems)
	fmt.Fprintf(w, "warnings: %d\n", r.Warnings)
	for _, c := range r.Cycles {
		fmt.Fprintf(w, "cycle:    %v\n", c)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(w, "error:    %v\n", err)
	}
}

// lint builds the full schedule in a throwaway world and collects what the
// scheduler reports while sorting it.
func lint(manifestPath, scriptsDir string, log *zap.Logger) (*report, error) {
	rep := &report{}
	log = log.WithOptions(zap.Hooks(func(e zapcore.Entry) error {
		if e.Level == zapcore.WarnLevel {
			rep.Warnings++
		}
		return nil
	}))

	m, err := data.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	lua, err := scripting.NewEngine(scriptsDir, log)
	if err != nil {
		return nil, fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()

	exec := executor.New(context.Background(), 1, log)
	defer exec.Close()

	world, roots, err := coresys.NewDefaultWorld(coresys.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer world.Dispose()

	sim := system.NewSim(config.Default().Simulation, exec)
	scripted, err := system.BuildManifest(world, m, lua, sim.Board)
	if err != nil {
		return nil, err
	}

	regErr := roots.RegisterSystems(append(system.Builtin(sim, nil, 1), scripted...)...)
	for _, err := range multierr.Errors(regErr) {
		var cycle *coresys.CycleError
		if errors.As(err, &cycle) {
			rep.Cycles = append(rep.Cycles, cycle)
			continue
		}
		rep.Errors = append(rep.Errors, err)
	}
	rep.Systems = len(world.Systems())
	rep.Tree = world.Dump()
	return rep, nil
}
