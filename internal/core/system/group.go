package system

import (
	"fmt"
	"slices"

	"github.com/l1jgo/gamesys/internal/core/event"
	"go.uber.org/multierr"
)

// Group is a system that updates an ordered list of member systems. Embed it
// to define a group type:
//
//	type SimulationGroup struct{ system.Group }
//
// With automatic sorting on (the default), membership changes are staged and
// applied by the next sort. With it off, members run in insertion order.
type Group struct {
	Base

	members       []System
	pendingAdd    []System
	pendingRemove []System
	dirty         bool
	manual        bool
}

func (g *Group) group() *Group { return g }

type grouper interface {
	System
	group() *Group
}

func asGroup(s System) (*Group, bool) {
	if gr, ok := s.(grouper); ok {
		return gr.group(), true
	}
	return nil, false
}

// SetAutoSort turns automatic ordering on or off. Only legal before creation.
func (g *Group) SetAutoSort(on bool) error {
	if err := g.checkDeclare(); err != nil {
		return fmt.Errorf("set auto sort: %w", err)
	}
	g.manual = !on
	return nil
}

func (g *Group) AutoSort() bool { return !g.manual }

// Dirty reports whether a sort is pending.
func (g *Group) Dirty() bool { return g.dirty }

// Systems returns the current update list. Staged changes are not included.
func (g *Group) Systems() []System { return slices.Clone(g.members) }

// Contains reports whether s is a current member.
func (g *Group) Contains(s System) bool { return indexOf(g.members, s) >= 0 }

// AddSystemToUpdateList adds s to the group. A nil system is ignored.
func (g *Group) AddSystemToUpdateList(s System) error {
	if err := g.check(); err != nil {
		return fmt.Errorf("add to %s: %w", g.typ, err)
	}
	if isNil(s) {
		return nil
	}
	sb := s.base()
	if sb == &g.Base {
		return fmt.Errorf("add %s: %w", g.typ, ErrAddSelf)
	}
	if err := sb.check(); err != nil {
		return fmt.Errorf("add %s to %s: %w", sb.typ, g.typ, err)
	}
	if cg, ok := asGroup(s); ok && cg.containsRecursive(&g.Base) {
		return fmt.Errorf("add %s to %s: %w", sb.typ, g.typ, ErrContainmentCycle)
	}

	if g.manual {
		if indexOf(g.members, s) < 0 {
			g.members = append(g.members, s)
		}
		return nil
	}
	if i := indexOf(g.pendingRemove, s); i >= 0 {
		g.pendingRemove = slices.Delete(g.pendingRemove, i, i+1)
		return nil
	}
	if indexOf(g.members, s) >= 0 || indexOf(g.pendingAdd, s) >= 0 {
		return nil
	}
	g.pendingAdd = append(g.pendingAdd, s)
	g.dirty = true
	return nil
}

// RemoveSystemFromUpdateList stages removal of s. Groups with automatic
// sorting off do not support removal.
func (g *Group) RemoveSystemFromUpdateList(s System) error {
	if err := g.check(); err != nil {
		return fmt.Errorf("remove from %s: %w", g.typ, err)
	}
	if g.manual {
		return fmt.Errorf("remove from %s: %w", g.typ, ErrManualRemove)
	}
	if isNil(s) {
		return nil
	}
	if i := indexOf(g.pendingAdd, s); i >= 0 {
		g.pendingAdd = slices.Delete(g.pendingAdd, i, i+1)
		return nil
	}
	if indexOf(g.members, s) >= 0 && indexOf(g.pendingRemove, s) < 0 {
		g.pendingRemove = append(g.pendingRemove, s)
		g.dirty = true
	}
	return nil
}

// SortSystems applies staged changes and orders this group and every dirty
// group below it. Clean groups keep their order. A failure in one group does
// not stop the others from sorting.
func (g *Group) SortSystems() error {
	if err := g.check(); err != nil {
		return fmt.Errorf("sort %s: %w", g.typ, err)
	}
	var errs error
	if !g.manual && g.dirty {
		errs = g.rebuild()
	}
	for _, m := range g.members {
		if cg, ok := asGroup(m); ok && cg.state == Created {
			errs = multierr.Append(errs, cg.SortSystems())
		}
	}
	return errs
}

func (g *Group) rebuild() error {
	next := make([]System, 0, len(g.members)+len(g.pendingAdd))
	for _, m := range g.members {
		if indexOf(g.pendingRemove, m) < 0 {
			next = append(next, m)
		}
	}
	next = append(next, g.pendingAdd...)
	g.members = next
	g.pendingAdd = nil
	g.pendingRemove = nil
	g.dirty = false

	sorted, err := sortSystems(g.typ, next, g.world.log)
	if err != nil {
		event.Emit(g.world.bus, event.SortFailed{Group: g.typ.String(), Frame: g.world.time.Frame, Err: err})
		return err
	}
	g.members = sorted
	return nil
}

// UpdateAll sorts if needed and then updates every member in order. A failing
// member is reported and skipped; the rest still run.
func (g *Group) UpdateAll() error {
	var sortErr error
	if g.dirty && !g.manual {
		sortErr = g.SortSystems()
	}
	members := g.members
	for _, m := range members {
		if err := safeUpdate(m); err != nil {
			g.world.reportUpdateFailure(g, m, err)
		}
	}
	return sortErr
}

// OnUpdate makes a Group an Updater. Types embedding Group may shadow it.
func (g *Group) OnUpdate() error { return g.UpdateAll() }

func (g *Group) containsRecursive(target *Base) bool {
	for _, list := range [][]System{g.members, g.pendingAdd} {
		for _, m := range list {
			if m.base() == target {
				return true
			}
			if cg, ok := asGroup(m); ok && cg.containsRecursive(target) {
				return true
			}
		}
	}
	return false
}

func indexOf(list []System, s System) int {
	b := s.base()
	return slices.IndexFunc(list, func(m System) bool { return m.base() == b })
}
