package system

import (
	"context"
	"math"

	"github.com/l1jgo/gamesys/internal/component"
	"github.com/l1jgo/gamesys/internal/core/ecs"
	"github.com/l1jgo/gamesys/internal/core/job"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
)

// Fixed-step motion. Each system dispatches one job per step; the tracker
// chains them through their declared Position/Velocity access, so the three
// jobs never overlap on the same store.

// DragSystem damps velocities and clamps them to the speed limit.
type DragSystem struct {
	coresys.Base
	sim *Sim
}

func NewDragSystem(sim *Sim) *DragSystem { return &DragSystem{sim: sim} }

func (s *DragSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.FixedUpdateGroup]())
	_ = s.UpdateBefore(coresys.TypeOf[MovementSystem]())
	_ = s.WritesData(s.sim.Velocities.Key())
}

func (s *DragSystem) OnSchedule(deps job.Token) (job.Token, error) {
	dt := s.World().Time().FixedDelta.Seconds()
	keep := math.Pow(1-s.sim.Cfg.Drag, dt)
	limit := s.sim.Cfg.MaxSpeed
	vel := s.sim.Velocities
	return s.sim.Exec.Dispatch(deps, "drag", func(context.Context) error {
		vel.Each(func(_ ecs.EntityID, v *component.Velocity) {
			v.X *= keep
			v.Y *= keep
			if sp := math.Hypot(v.X, v.Y); limit > 0 && sp > limit {
				v.X *= limit / sp
				v.Y *= limit / sp
			}
		})
		return nil
	}), nil
}

// MovementSystem integrates positions from velocities.
type MovementSystem struct {
	coresys.Base
	sim *Sim
}

func NewMovementSystem(sim *Sim) *MovementSystem { return &MovementSystem{sim: sim} }

func (s *MovementSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.FixedUpdateGroup]())
	_ = s.ReadsData(s.sim.Velocities.Key())
	_ = s.WritesData(s.sim.Positions.Key())
}

func (s *MovementSystem) OnSchedule(deps job.Token) (job.Token, error) {
	dt := s.World().Time().FixedDelta.Seconds()
	pos, vel := s.sim.Positions, s.sim.Velocities
	return s.sim.Exec.Dispatch(deps, "movement", func(context.Context) error {
		ecs.Each2(pos, vel, func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
			p.X += v.X * dt
			p.Y += v.Y * dt
		})
		return nil
	}), nil
}

// BoundsSystem reflects entities that left the arena back inside it.
type BoundsSystem struct {
	coresys.Base
	sim *Sim
}

func NewBoundsSystem(sim *Sim) *BoundsSystem { return &BoundsSystem{sim: sim} }

func (s *BoundsSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.FixedUpdateGroup]())
	_ = s.UpdateAfter(coresys.TypeOf[MovementSystem]())
	_ = s.WritesData(s.sim.Positions.Key(), s.sim.Velocities.Key())
}

func (s *BoundsSystem) OnSchedule(deps job.Token) (job.Token, error) {
	limit := s.sim.Cfg.Bounds
	pos, vel := s.sim.Positions, s.sim.Velocities
	return s.sim.Exec.Dispatch(deps, "bounds", func(context.Context) error {
		ecs.Each2(pos, vel, func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
			p.X, v.X = reflect1(p.X, v.X, limit)
			p.Y, v.Y = reflect1(p.Y, v.Y, limit)
		})
		return nil
	}), nil
}

// reflect1 folds x back into [-limit, limit] and flips v on contact.
func reflect1(x, v, limit float64) (float64, float64) {
	switch {
	case x > limit:
		return max(2*limit-x, -limit), -math.Abs(v)
	case x < -limit:
		return min(-2*limit-x, limit), math.Abs(v)
	}
	return x, v
}
