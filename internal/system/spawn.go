package system

import (
	"math"
	"math/rand/v2"

	"github.com/l1jgo/gamesys/internal/component"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"go.uber.org/zap"
)

// SpawnSystem tops the population up to the configured entity count.
// Runs first in the Update phase; structural changes stay on the scheduler
// goroutine, so it waits for every job touching the stores it fills.
type SpawnSystem struct {
	coresys.Base
	sim *Sim
	rng *rand.Rand
}

func NewSpawnSystem(sim *Sim) *SpawnSystem {
	seed := uint64(sim.Cfg.Seed)
	return &SpawnSystem{sim: sim, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SpawnSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.UpdateGroup](), coresys.OrderFirst())
	_ = s.WritesData(s.sim.Positions.Key(), s.sim.Velocities.Key(), s.sim.Lifetimes.Key())
}

func (s *SpawnSystem) OnUpdate() error {
	missing := s.sim.Cfg.EntityCount - s.sim.Entities.Pool().Live()
	for range missing {
		s.spawn()
	}
	if missing > 0 {
		s.World().Logger().Debug("entities spawned",
			zap.Int("count", missing),
			zap.Int("live", s.sim.Entities.Pool().Live()),
		)
	}
	return nil
}

func (s *SpawnSystem) spawn() {
	cfg := s.sim.Cfg
	id := s.sim.Entities.CreateEntity()
	angle := s.rng.Float64() * 2 * math.Pi
	speed := s.rng.Float64() * cfg.MaxSpeed
	s.sim.Positions.Set(id, &component.Position{
		X: (s.rng.Float64()*2 - 1) * cfg.Bounds,
		Y: (s.rng.Float64()*2 - 1) * cfg.Bounds,
	})
	s.sim.Velocities.Set(id, &component.Velocity{X: math.Cos(angle) * speed, Y: math.Sin(angle) * speed})
	if cfg.Lifetime > 0 {
		// Stagger so the population does not expire in one frame.
		s.sim.Lifetimes.Set(id, &component.Lifetime{Remaining: cfg.Lifetime/2 + s.rng.IntN(cfg.Lifetime/2+1)})
	}
}
