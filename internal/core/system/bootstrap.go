package system

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Root phase groups of the default world. Each completes all outstanding jobs
// before handing over to the next phase.
type (
	FixedUpdateGroup struct{ Group }
	EarlyUpdateGroup struct{ Group }
	UpdateGroup      struct{ Group }
	LateUpdateGroup  struct{ Group }
)

func (g *FixedUpdateGroup) Declare() { _ = g.SetSyncPolicy(CompleteWorldAfterUpdate) }
func (g *EarlyUpdateGroup) Declare() { _ = g.SetSyncPolicy(CompleteWorldAfterUpdate) }
func (g *UpdateGroup) Declare()      { _ = g.SetSyncPolicy(CompleteWorldAfterUpdate) }
func (g *LateUpdateGroup) Declare()  { _ = g.SetSyncPolicy(CompleteWorldAfterUpdate) }

// Roots holds the four phase groups of a default world.
type Roots struct {
	world *World

	Fixed  *FixedUpdateGroup
	Early  *EarlyUpdateGroup
	Main   *UpdateGroup
	Late   *LateUpdateGroup
}

// NewDefaultWorld creates a world with the FixedUpdate, EarlyUpdate, Update
// and LateUpdate root groups, in that order.
func NewDefaultWorld(opts ...Option) (*World, *Roots, error) {
	w := NewWorld(opts...)
	r := &Roots{world: w}

	var err error
	if r.Fixed, err = CreateSystem[FixedUpdateGroup](w); err != nil {
		return nil, nil, err
	}
	if r.Early, err = CreateSystem[EarlyUpdateGroup](w); err != nil {
		return nil, nil, err
	}
	if r.Main, err = CreateSystem[UpdateGroup](w); err != nil {
		return nil, nil, err
	}
	if r.Late, err = CreateSystem[LateUpdateGroup](w); err != nil {
		return nil, nil, err
	}
	for _, g := range []System{r.Fixed, r.Early, r.Main, r.Late} {
		if err := w.AddRootGroup(g); err != nil {
			return nil, nil, err
		}
	}
	return w, r, nil
}

func (r *Roots) World() *World { return r.world }

// RegisterSystems creates the given systems and places each one into the
// groups it declared, or into the Update group when it declared none.
// Systems that disabled auto registration are created but not placed.
// Creation and placement failures are logged and returned together; the
// remaining systems are still registered. All roots are sorted at the end.
func (r *Roots) RegisterSystems(systems ...System) error {
	w := r.world
	var errs error
	created := make([]System, 0, len(systems))
	for _, s := range systems {
		if isNil(s) {
			continue
		}
		if s.base().state == Uninitialized {
			if err := w.AddSystem(s); err != nil {
				w.log.Error("system registration failed", zap.Error(err))
				errs = multierr.Append(errs, err)
				continue
			}
		}
		created = append(created, s)
	}

	for _, s := range created {
		b := s.base()
		if b.noAutoReg || b.state != Created || indexOf(w.roots, s) >= 0 {
			continue
		}
		if len(b.placements) == 0 {
			errs = multierr.Append(errs, r.Main.AddSystemToUpdateList(s))
			continue
		}
		for _, p := range b.placements {
			target := w.Existing(p.Group)
			g, ok := asGroup(target)
			if !ok {
				w.log.Warn("ignoring invalid [UpdateInGroup] placement",
					zap.String("system", b.typ.String()),
					zap.String("group", p.Group.String()))
				continue
			}
			if err := g.AddSystemToUpdateList(s); err != nil {
				w.log.Error("system placement failed", zap.Error(err))
				errs = multierr.Append(errs, err)
			}
		}
	}

	return multierr.Append(errs, r.SortAll())
}

// SortAll sorts every root group and the groups below them.
func (r *Roots) SortAll() error {
	var errs error
	for _, g := range []*Group{&r.Fixed.Group, &r.Early.Group, &r.Main.Group, &r.Late.Group} {
		errs = multierr.Append(errs, g.SortSystems())
	}
	return errs
}

// FixedUpdate runs the fixed-step phase once with the given step.
func (r *Roots) FixedUpdate(step time.Duration) error {
	r.world.SetFixedDelta(step)
	return r.world.UpdateRoot(r.Fixed)
}

func (r *Roots) EarlyUpdate() error { return r.world.UpdateRoot(r.Early) }
func (r *Roots) Update() error      { return r.world.UpdateRoot(r.Main) }
func (r *Roots) LateUpdate() error  { return r.world.UpdateRoot(r.Late) }

// Frame advances the clock by dt and runs one full frame: steps fixed
// updates followed by the early, main and late phases.
func (r *Roots) Frame(dt, step time.Duration, steps int) error {
	r.world.Advance(dt)
	var errs error
	for range steps {
		errs = multierr.Append(errs, r.FixedUpdate(step))
	}
	errs = multierr.Append(errs, r.EarlyUpdate())
	errs = multierr.Append(errs, r.Update())
	errs = multierr.Append(errs, r.LateUpdate())
	if errs != nil {
		return fmt.Errorf("frame %d: %w", r.world.time.Frame, errs)
	}
	return nil
}
