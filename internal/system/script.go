package system

import (
	"fmt"

	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/data"
	"github.com/l1jgo/gamesys/internal/scripting"
	"go.uber.org/zap"
)

// ScriptSystem is a manifest-defined system whose hooks live in a Lua table.
// Hooks run on the scheduler goroutine with a snapshot of the blackboard;
// numbers returned from on_update are written back to it.
type ScriptSystem struct {
	coresys.Base
	entry data.SystemEntry
	lua   *scripting.Engine
	board *Blackboard
	names *resolver
}

// ScriptType is the identity of the scripted system with the given
// manifest name.
func ScriptType(name string) coresys.TypeID { return coresys.NamedType("script/" + name) }

func (s *ScriptSystem) SystemType() coresys.TypeID { return ScriptType(s.entry.Name) }

func (s *ScriptSystem) Declare() {
	_ = s.UpdateInGroup(s.names.group(s.entry.In), placementOpts(s.entry.Order)...)
	for _, name := range s.entry.Before {
		_ = s.UpdateBefore(s.names.system(name))
	}
	for _, name := range s.entry.After {
		_ = s.UpdateAfter(s.names.system(name))
	}
	_ = s.ReadsData(s.names.resources(s.entry.Reads)...)
	_ = s.WritesData(s.names.resources(s.entry.Writes)...)
	_ = s.WritesData(BlackboardKey)
}

func (s *ScriptSystem) OnCreate() error {
	table := s.entry.ScriptTable()
	if !s.lua.HasTable(table) {
		return fmt.Errorf("script system %s: %w: %s", s.entry.Name, scripting.ErrNoTable, table)
	}
	if s.entry.Disabled {
		if err := s.SetEnabled(false); err != nil {
			return err
		}
	}
	_, err := s.call(scripting.HookCreate)
	return err
}

func (s *ScriptSystem) OnStartRunning() { s.callLogged(scripting.HookStart) }
func (s *ScriptSystem) OnStopRunning()  { s.callLogged(scripting.HookStop) }

func (s *ScriptSystem) OnUpdate() error {
	out, err := s.call(scripting.HookUpdate)
	if err != nil {
		return err
	}
	s.board.Merge(out)
	return nil
}

func (s *ScriptSystem) OnDestroy() error {
	_, err := s.call(scripting.HookDestroy)
	return err
}

func (s *ScriptSystem) call(hook string) (map[string]float64, error) {
	tm := s.World().Time()
	return s.lua.CallHook(s.entry.ScriptTable(), hook, scripting.HookContext{
		System:  s.entry.Name,
		Frame:   tm.Frame,
		Delta:   tm.Delta,
		Elapsed: tm.Elapsed,
		Values:  s.board.Snapshot(),
	})
}

// callLogged runs a hook that has no error path back to the scheduler.
func (s *ScriptSystem) callLogged(hook string) {
	if _, err := s.call(hook); err != nil {
		s.World().Logger().Error("script hook failed",
			zap.String("system", s.entry.Name),
			zap.String("hook", hook),
			zap.Error(err),
		)
	}
}

// ManifestGroup is a data-defined group.
type ManifestGroup struct {
	coresys.Group
	entry data.GroupEntry
	names *resolver
}

// GroupType is the identity of the manifest group with the given name.
func GroupType(name string) coresys.TypeID { return coresys.NamedType("group/" + name) }

func (g *ManifestGroup) SystemType() coresys.TypeID { return GroupType(g.entry.Name) }

func (g *ManifestGroup) Declare() {
	_ = g.UpdateInGroup(g.names.group(g.entry.In), placementOpts(g.entry.Order)...)
	_ = g.SetAutoSort(g.entry.Sorted())
}

func placementOpts(order string) []coresys.PlacementOption {
	switch order {
	case "first":
		return []coresys.PlacementOption{coresys.OrderFirst()}
	case "last":
		return []coresys.PlacementOption{coresys.OrderLast()}
	}
	return nil
}
