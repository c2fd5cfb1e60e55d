package system

import (
	"context"
	"testing"

	"github.com/l1jgo/gamesys/internal/component"
	"github.com/l1jgo/gamesys/internal/config"
	"github.com/l1jgo/gamesys/internal/core/ecs"
	"github.com/l1jgo/gamesys/internal/core/event"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/executor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	w    *coresys.World
	r    *coresys.Roots
	sim  *Sim
	logs *observer.ObservedLogs
}

// quietSim has no spawning, drag, speed limit or expiry unless a test sets them.
func quietSim() config.SimulationConfig {
	return config.SimulationConfig{Bounds: 1000, Seed: 1}
}

func newHarness(t *testing.T, cfg config.SimulationConfig) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	exec := executor.New(context.Background(), 4, log)
	t.Cleanup(func() { _ = exec.Close() })

	w, r, err := coresys.NewDefaultWorld(coresys.WithLogger(log), coresys.WithEventBus(event.NewBus()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Dispose() })

	return &harness{w: w, r: r, sim: NewSim(cfg, exec), logs: logs}
}

func (h *harness) put(x, y, vx, vy float64) ecs.EntityID {
	id := h.sim.Entities.CreateEntity()
	h.sim.Positions.Set(id, &component.Position{X: x, Y: y})
	h.sim.Velocities.Set(id, &component.Velocity{X: vx, Y: vy})
	return id
}
