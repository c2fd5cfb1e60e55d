package system

import (
	"context"
	"math"

	"github.com/l1jgo/gamesys/internal/component"
	"github.com/l1jgo/gamesys/internal/core/ecs"
	"github.com/l1jgo/gamesys/internal/core/job"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"go.uber.org/zap"
)

// CentroidSystem computes the mean entity position and publishes it on the
// blackboard as centroid_x, centroid_y and entities.
type CentroidSystem struct {
	coresys.Base
	sim *Sim
}

func NewCentroidSystem(sim *Sim) *CentroidSystem { return &CentroidSystem{sim: sim} }

func (s *CentroidSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.LateUpdateGroup]())
	_ = s.ReadsData(s.sim.Positions.Key())
	_ = s.WritesData(CentroidKey, BlackboardKey)
}

func (s *CentroidSystem) OnSchedule(deps job.Token) (job.Token, error) {
	sim := s.sim
	return sim.Exec.Dispatch(deps, "centroid", func(context.Context) error {
		var c component.Centroid
		sim.Positions.Each(func(_ ecs.EntityID, p *component.Position) {
			c.X += p.X
			c.Y += p.Y
			c.Count++
		})
		if c.Count > 0 {
			c.X /= float64(c.Count)
			c.Y /= float64(c.Count)
		}
		sim.Centroid = c
		sim.Board.Merge(map[string]float64{
			"centroid_x": c.X,
			"centroid_y": c.Y,
			"entities":   float64(c.Count),
		})
		return nil
	}), nil
}

// edgeBand is the fraction of the arena, measured from the wall, in which
// entities age twice as fast.
const edgeBand = 0.1

// LifetimeSystem ages entities and queues expired ones for destruction.
// It reads Position alongside CentroidSystem, so both jobs may run at once.
type LifetimeSystem struct {
	coresys.Base
	sim *Sim
}

func NewLifetimeSystem(sim *Sim) *LifetimeSystem { return &LifetimeSystem{sim: sim} }

func (s *LifetimeSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.LateUpdateGroup]())
	_ = s.ReadsData(s.sim.Positions.Key())
	_ = s.WritesData(s.sim.Lifetimes.Key(), ecs.DestroyQueueKey)
}

func (s *LifetimeSystem) OnSchedule(deps job.Token) (job.Token, error) {
	sim := s.sim
	edge := sim.Cfg.Bounds * (1 - edgeBand)
	return sim.Exec.Dispatch(deps, "lifetime", func(context.Context) error {
		sim.Lifetimes.Each(func(id ecs.EntityID, l *component.Lifetime) {
			if l.Remaining <= 0 {
				return // already queued
			}
			l.Remaining--
			if p, ok := sim.Positions.Get(id); ok && (math.Abs(p.X) > edge || math.Abs(p.Y) > edge) {
				l.Remaining--
			}
			if l.Remaining <= 0 {
				sim.Entities.MarkForDestruction(id)
			}
		})
		return nil
	}), nil
}

// CleanupSystem flushes the deferred entity destruction queue at frame end,
// once every job touching a component store has finished.
type CleanupSystem struct {
	coresys.Base
	sim       *Sim
	destroyed int
}

func NewCleanupSystem(sim *Sim) *CleanupSystem { return &CleanupSystem{sim: sim} }

func (s *CleanupSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.LateUpdateGroup](), coresys.OrderLast())
	_ = s.WritesData(append(s.sim.Entities.Registry().Keys(), ecs.DestroyQueueKey)...)
}

func (s *CleanupSystem) OnUpdate() error {
	n := s.sim.Entities.FlushDestroyQueue()
	s.destroyed += n
	if n > 0 {
		s.World().Logger().Debug("entities destroyed",
			zap.Int("count", n),
			zap.Int("live", s.sim.Entities.Pool().Live()),
		)
	}
	return nil
}

// Destroyed returns the total number of entities flushed so far.
func (s *CleanupSystem) Destroyed() int { return s.destroyed }
