package system

import (
	"fmt"

	"github.com/l1jgo/gamesys/internal/component"
	"github.com/l1jgo/gamesys/internal/core/ecs"
	"github.com/l1jgo/gamesys/internal/core/job"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/data"
	"github.com/l1jgo/gamesys/internal/scripting"
)

// Names a manifest may use for built-in systems and resources.
var (
	builtinSystems = map[string]coresys.TypeID{
		"spawn":       coresys.TypeOf[SpawnSystem](),
		"drag":        coresys.TypeOf[DragSystem](),
		"movement":    coresys.TypeOf[MovementSystem](),
		"bounds":      coresys.TypeOf[BoundsSystem](),
		"centroid":    coresys.TypeOf[CentroidSystem](),
		"lifetime":    coresys.TypeOf[LifetimeSystem](),
		"cleanup":     coresys.TypeOf[CleanupSystem](),
		"diagnostics": coresys.TypeOf[DiagnosticsSystem](),
	}
	phaseGroups = map[string]coresys.TypeID{
		data.PhaseFixedUpdate: coresys.TypeOf[coresys.FixedUpdateGroup](),
		data.PhaseEarlyUpdate: coresys.TypeOf[coresys.EarlyUpdateGroup](),
		data.PhaseUpdate:      coresys.TypeOf[coresys.UpdateGroup](),
		data.PhaseLateUpdate:  coresys.TypeOf[coresys.LateUpdateGroup](),
	}
	builtinResources = map[string]job.Key{
		"Position":      job.KeyOf[component.Position](),
		"Velocity":      job.KeyOf[component.Velocity](),
		"Lifetime":      job.KeyOf[component.Lifetime](),
		"Centroid":      CentroidKey,
		"Blackboard":    BlackboardKey,
		"journal":       JournalKey,
		"destroy_queue": ecs.DestroyQueueKey,
	}
)

// resolver maps manifest names to type identities and resource keys.
type resolver struct {
	groups  map[string]bool
	scripts map[string]bool
}

func newResolver(m *data.Manifest) *resolver {
	r := &resolver{groups: make(map[string]bool), scripts: make(map[string]bool)}
	for _, g := range m.Groups {
		r.groups[g.Name] = true
	}
	for _, s := range m.Systems {
		r.scripts[s.Name] = true
	}
	return r
}

func (r *resolver) group(name string) coresys.TypeID {
	if id, ok := phaseGroups[name]; ok {
		return id
	}
	return GroupType(name)
}

// system resolves a constraint target. Names that match nothing resolve to a
// non-system identity, which the sorter reports and drops.
func (r *resolver) system(name string) coresys.TypeID {
	switch {
	case r.scripts[name]:
		return ScriptType(name)
	case r.groups[name]:
		return GroupType(name)
	}
	if id, ok := builtinSystems[name]; ok {
		return id
	}
	if id, ok := phaseGroups[name]; ok {
		return id
	}
	return coresys.UnknownType(name)
}

// resources maps resource names to keys. Unknown names become keys of their
// own, so scripts can fence data only they share.
func (r *resolver) resources(names []string) []job.Key {
	keys := make([]job.Key, 0, len(names))
	for _, n := range names {
		if k, ok := builtinResources[n]; ok {
			keys = append(keys, k)
			continue
		}
		keys = append(keys, job.Key(n))
	}
	return keys
}

// BuildManifest turns a manifest into uncreated groups and script systems,
// ready for Roots.RegisterSystems. Groups come first, each after the group
// it is placed in. A factory is registered for every entry so the world can
// recreate them by type.
func BuildManifest(w *coresys.World, m *data.Manifest, lua *scripting.Engine, board *Blackboard) ([]coresys.System, error) {
	groups, err := m.GroupOrder()
	if err != nil {
		return nil, err
	}
	if len(m.Systems) > 0 && lua == nil {
		return nil, fmt.Errorf("manifest declares %d script systems but no script engine is loaded", len(m.Systems))
	}
	names := newResolver(m)

	out := make([]coresys.System, 0, len(groups)+len(m.Systems))
	for _, g := range groups {
		newGroup := func() coresys.System { return &ManifestGroup{entry: g, names: names} }
		w.RegisterFactory(GroupType(g.Name), newGroup)
		out = append(out, newGroup())
	}
	for _, s := range m.Systems {
		newScript := func() coresys.System {
			return &ScriptSystem{entry: s, lua: lua, board: board, names: names}
		}
		w.RegisterFactory(ScriptType(s.Name), newScript)
		out = append(out, newScript())
	}
	return out, nil
}
